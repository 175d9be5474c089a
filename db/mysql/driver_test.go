package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	dsn, err := normalize("game:secret@tcp(db:3306)/progression")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "/progression")

	dsn, err = normalize("game:secret@tcp(db:3306)/progression?charset=utf8")
	require.NoError(t, err)
	assert.Contains(t, dsn, "charset=utf8")
	assert.NotContains(t, dsn, "utf8mb4")
}

func TestNormalize_Invalid(t *testing.T) {
	_, err := normalize("not a dsn")
	assert.Error(t, err)
}
