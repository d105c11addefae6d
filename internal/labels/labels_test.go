package labels

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := Table()
	require.Len(t, table, Count)
	assert.Equal(t, Entry{ID: 0, Glyph: "ا"}, table[0])
	assert.Equal(t, Entry{ID: 28, Glyph: "ة"}, table[28])
	assert.Equal(t, Entry{ID: 29, Glyph: "لا"}, table[29])

	seen := map[string]bool{}
	for i, e := range table {
		assert.Equal(t, i, e.ID)
		assert.NotEmpty(t, e.Glyph)
		assert.False(t, seen[e.Glyph], "duplicate glyph %q", e.Glyph)
		seen[e.Glyph] = true
	}
}

func TestMapper_KnownIDs(t *testing.T) {
	m := NewMapper(nil)
	for i := range Count {
		g, ok := Glyph(i)
		require.True(t, ok)
		assert.Equal(t, g, m.Label(strconv.Itoa(i)))
	}
	assert.Equal(t, "ب", m.Label(" 1 "))
}

func TestMapper_UnicodeDigits(t *testing.T) {
	m := NewMapper(nil)
	assert.Equal(t, "ث", m.Label("٣"))
	assert.Equal(t, "لا", m.Label("٢٩"))
	assert.Equal(t, "ب", m.Label("۱"))
	assert.Equal(t, "ت", m.Label(" २ "))
	assert.Equal(t, "٣٠", m.Label("٣٠"))

	id, ok := m.ClassID("١٠")
	require.True(t, ok)
	assert.Equal(t, 10, id)
}

func TestMapper_Passthrough(t *testing.T) {
	m := NewMapper(nil)
	tests := []string{"30", "-1", "alef", "", "1.0", "ا"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, raw, m.Label(raw))
		})
	}
}

func TestMapper_Aliases(t *testing.T) {
	m := NewMapper(map[string]int{
		"alef":  0,
		"laa":   29,
		"bogus": 99,
	})
	assert.Equal(t, "ا", m.Label("alef"))
	assert.Equal(t, "لا", m.Label(" laa "))
	assert.Equal(t, "ا", m.Label("Alef"))
	// aliases pointing outside the table fall through
	assert.Equal(t, "bogus", m.Label("bogus"))
	// numeric lookup wins over aliases
	assert.Equal(t, "ت", m.Label("2"))
}

func TestMapper_NFCAlias(t *testing.T) {
	// "é" decomposed vs precomposed resolve to the same alias
	m := NewMapper(map[string]int{"caf\u00e9": 5})
	assert.Equal(t, "ح", m.Label("cafe\u0301"))
}

func TestMapper_Nil(t *testing.T) {
	var m *Mapper
	assert.Equal(t, "ا", m.Label("0"))
	assert.Equal(t, "x", m.Label("x"))
}

func TestGlyph_OutOfRange(t *testing.T) {
	_, ok := Glyph(Count)
	assert.False(t, ok)
	_, ok = Glyph(-1)
	assert.False(t, ok)
}
