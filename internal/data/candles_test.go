package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSVSkipsHeader(t *testing.T) {
	path := writeFile(t, "candles.csv",
		"ts,open,high,low,close,volume\n"+
			"1000,50000,50100,49900,50050,12.5\n"+
			"2000,50050,50200,50000,50150,8.1\n")

	candles, err := LoadCSV(path, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, uint64(1000), candles[0].Ts)
	assert.Equal(t, "BTCUSDT", candles[0].Sym)
	assert.Equal(t, 50050.0, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
}

func TestLoadCSVWithoutHeader(t *testing.T) {
	path := writeFile(t, "candles.csv", "1000,1,2,0.5,1.5,3\n")

	candles, err := LoadCSV(path, "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.5, candles[0].Close)
}

func TestLoadCSVRejectsUnsortedRows(t *testing.T) {
	path := writeFile(t, "candles.csv",
		"2000,1,2,0.5,1.5,3\n"+
			"1000,1,2,0.5,1.5,3\n")

	_, err := LoadCSV(path, "BTCUSDT")
	assert.ErrorIs(t, err, ErrNotSorted)
}

func TestLoadCSVRejectsBadNumbers(t *testing.T) {
	path := writeFile(t, "candles.csv", "1000,abc,2,0.5,1.5,3\n")

	_, err := LoadCSV(path, "BTCUSDT")
	assert.ErrorIs(t, err, ErrBadRow)
}

func TestLoadCSVEmptyFile(t *testing.T) {
	path := writeFile(t, "candles.csv", "ts,open,high,low,close,volume\n")

	_, err := LoadCSV(path, "BTCUSDT")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestLoadJSONDecimalStrings(t *testing.T) {
	path := writeFile(t, "candles.json", `[
		{"ts": 1000, "open": "50000.5", "high": "50100", "low": "49900", "close": "50050.25", "volume": "12.5"},
		{"ts": 2000, "open": "50050", "high": "50200", "low": "50000", "close": "50150", "volume": "8"}
	]`)

	candles, err := LoadJSON(path, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 50050.25, candles[0].Close)
	assert.Equal(t, 50000.5, candles[0].Open)
}

func TestLoadJSONEmptyArray(t *testing.T) {
	path := writeFile(t, "candles.json", `[]`)

	_, err := LoadJSON(path, "BTCUSDT")
	assert.ErrorIs(t, err, ErrEmptyFile)
}
