package shops

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
)

const defaultCity = "Montréal"

// LoadCSVFile reads shops from path. A missing file yields no shops.
func LoadCSVFile(logger *slog.Logger, path string) ([]model.Shop, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("CSV file not found, skipping import", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open shops csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	out, err := ParseCSV(logger, f)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded shops from CSV", "count", len(out), "path", path)
	return out, nil
}

// ParseCSV expects a header row naming the columns; rows shorter than the
// header are skipped.
func ParseCSV(logger *slog.Logger, r io.Reader) ([]model.Shop, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var out []model.Shop
	line := 1
	for {
		fields, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error("error reading csv line", "line", line, "err", err)
			continue
		}
		if len(fields) < len(header) {
			continue
		}

		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		s := model.Shop{
			Name:       get("name"),
			Repair:     get("repair") == "1",
			Rental:     get("rental") == "1",
			Sale:       get("sale") == "1",
			Storage:    get("storage") == "1",
			Address:    get("address"),
			PostalCode: postal.Normalize(get("postal_code")),
			City:       get("city"),
			Phone:      optional(get("phone")),
			Website:    optional(get("website")),
			Notes:      optional(get("notes")),
			Status:     model.StatusApproved,
		}
		if s.City == "" {
			s.City = defaultCity
		}

		lat, latOK := parseNonZero(get("lat"))
		lon, lonOK := parseNonZero(get("lon"))
		// Montréal is west of Greenwich; some rows drop the sign.
		if lonOK && lon > 0 && strings.Contains(s.City, defaultCity) {
			logger.Warn("correcting positive longitude", "shop", s.Name, "from", lon, "to", -lon)
			lon = -lon
		}
		if latOK {
			s.Lat = optional(strconv.FormatFloat(lat, 'f', -1, 64))
		}
		if lonOK {
			s.Lon = optional(strconv.FormatFloat(lon, 'f', -1, 64))
		}

		out = append(out, s)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// zero and unparsable values both mean "no coordinate"
func parseNonZero(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
