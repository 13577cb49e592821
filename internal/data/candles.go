package data

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrEmptyFile = errors.New("candle file has no rows")
	ErrBadRow    = errors.New("malformed candle row")
	ErrNotSorted = errors.New("candles not sorted by timestamp")
)

// LoadCSV reads candles from a CSV file with columns
// ts,open,high,low,close,volume. A header row is detected and skipped.
// Rows must be sorted by timestamp; replay depends on source order.
func LoadCSV(path, symbol string) ([]schema.MarketCandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open candles")
	}
	defer f.Close()
	return parseCSV(f, symbol)
}

func parseCSV(r io.Reader, symbol string) ([]schema.MarketCandle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var candles []schema.MarketCandle
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read candles")
		}
		if first {
			first = false
			if _, err := strconv.ParseUint(row[0], 10, 64); err != nil {
				continue // header
			}
		}

		candle, err := parseRow(row, symbol)
		if err != nil {
			return nil, err
		}
		if n := len(candles); n > 0 && candle.Ts < candles[n-1].Ts {
			return nil, ErrNotSorted
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 {
		return nil, ErrEmptyFile
	}
	return candles, nil
}

func parseRow(row []string, symbol string) (schema.MarketCandle, error) {
	ts, err := strconv.ParseUint(row[0], 10, 64)
	if err != nil {
		return schema.MarketCandle{}, errors.Wrap(ErrBadRow, "ts "+row[0])
	}
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return schema.MarketCandle{}, errors.Wrap(ErrBadRow, "field "+row[i+1])
		}
		fields[i] = v
	}
	return schema.MarketCandle{
		Ts: ts, Sym: symbol,
		Open: fields[0], High: fields[1], Low: fields[2], Close: fields[3], Volume: fields[4],
	}, nil
}

// candleRow is the JSON export shape some venues produce, with prices
// as decimal strings.
type candleRow struct {
	Ts     uint64          `json:"ts"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// LoadJSON reads candles from a JSON array of rows with decimal-string
// prices.
func LoadJSON(path, symbol string) ([]schema.MarketCandle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open candles")
	}

	var rows []candleRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errors.Wrap(err, "parse candles")
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	candles := make([]schema.MarketCandle, 0, len(rows))
	for _, row := range rows {
		candle := schema.MarketCandle{Ts: row.Ts, Sym: symbol}
		for _, field := range []struct {
			dst *float64
			src decimal.Decimal
		}{
			{&candle.Open, row.Open},
			{&candle.High, row.High},
			{&candle.Low, row.Low},
			{&candle.Close, row.Close},
			{&candle.Volume, row.Volume},
		} {
			v, err := strconv.ParseFloat(field.src.String(), 64)
			if err != nil {
				return nil, errors.Wrap(ErrBadRow, field.src.String())
			}
			*field.dst = v
		}
		if n := len(candles); n > 0 && candle.Ts < candles[n-1].Ts {
			return nil, ErrNotSorted
		}
		candles = append(candles, candle)
	}
	return candles, nil
}
