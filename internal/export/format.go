package export

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is an export file format known to the platform.
type Format struct {
	Name string
	ID   int
}

var (
	FormatXLSX = Format{Name: "xlsx", ID: 1}
	FormatSAV  = Format{Name: "sav", ID: 2}
)

// DefaultFormat is used when no format is given.
var DefaultFormat = FormatSAV

var formats = []Format{FormatXLSX, FormatSAV}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return f.Name }

func (f Format) String() string { return f.Name }

// ParseFormat accepts a format name ("sav"), an extension (".sav") or a
// numeric format id ("2").
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if s == "" {
		return DefaultFormat, nil
	}
	if id, err := strconv.Atoi(s); err == nil {
		for _, f := range formats {
			if f.ID == id {
				return f, nil
			}
		}
		return Format{}, fmt.Errorf("invalid export format id: %d", id)
	}
	for _, f := range formats {
		if f.Name == s {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("invalid export format: %q", s)
}
