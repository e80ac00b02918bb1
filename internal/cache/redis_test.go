package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespace(t *testing.T) {
	assert.Equal(t, "le:", namespace(""))
	assert.Equal(t, "prod:", namespace("prod"))
	assert.Equal(t, "prod:", namespace(" prod: "))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `le:linkcache:action\*links`, escapeGlob("le:linkcache:action*links"))
	assert.Equal(t, `a\?b\[c\]\\`, escapeGlob(`a?b[c]\`))
	assert.Equal(t, "le:linkcache:", escapeGlob("le:linkcache:"))
}
