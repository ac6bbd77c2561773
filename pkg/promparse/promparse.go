// Package promparse parses the Prometheus text exposition format scraped
// from SFU instances' /metrics endpoints. Label-aware: the same metric name
// may appear once per label combination, and lookups can pick a specific
// label value or sum across all of them.
//
//	metrics := promparse.Parse(body)
//	rooms := metrics.Int("livekit_room_total")
//	tracks := metrics.SumInt("livekit_track_published_total")
//	bytesIn := metrics.Uint64WithLabel("livekit_packet_bytes", "direction", "incoming")
package promparse

import (
	"bufio"
	"strconv"
	"strings"
)

type entry struct {
	labels map[string]string
	value  string
}

// Metrics holds parsed samples grouped by metric name.
type Metrics struct {
	data map[string][]entry
}

// Parse reads the text exposition format, skipping comments and blanks.
func Parse(body string) *Metrics {
	m := &Metrics{data: make(map[string][]entry)}
	scanner := bufio.NewScanner(strings.NewReader(body))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, labels, value := parseLine(line)
		if name == "" {
			continue
		}

		m.data[name] = append(m.data[name], entry{labels: labels, value: value})
	}

	return m
}

// Float64 returns the first sample's value, 0 when absent or unparsable.
func (m *Metrics) Float64(name string) float64 {
	entries := m.data[name]
	if len(entries) == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(entries[0].value, 64)
	if err != nil {
		return 0
	}
	return f
}

// Int returns the first sample truncated to int. Prometheus emits "42.0"
// for integral gauges.
func (m *Metrics) Int(name string) int {
	return int(m.Float64(name))
}

// Uint64 returns the first sample as uint64; negative or missing is 0.
func (m *Metrics) Uint64(name string) uint64 {
	f := m.Float64(name)
	if f < 0 {
		return 0
	}
	return uint64(f)
}

// SumInt sums every label combination of a metric.
func (m *Metrics) SumInt(name string) int {
	var total float64
	for _, e := range m.data[name] {
		if f, err := strconv.ParseFloat(e.value, 64); err == nil {
			total += f
		}
	}
	return int(total)
}

// SumUint64 sums every label combination, skipping negatives.
func (m *Metrics) SumUint64(name string) uint64 {
	var total float64
	for _, e := range m.data[name] {
		if f, err := strconv.ParseFloat(e.value, 64); err == nil && f > 0 {
			total += f
		}
	}
	return uint64(total)
}

// Float64WithLabel returns the first sample whose label matches key=value.
func (m *Metrics) Float64WithLabel(name, labelKey, labelValue string) float64 {
	for _, e := range m.data[name] {
		if e.labels[labelKey] == labelValue {
			f, err := strconv.ParseFloat(e.value, 64)
			if err != nil {
				return 0
			}
			return f
		}
	}
	return 0
}

// Uint64WithLabel returns the first matching sample as uint64.
func (m *Metrics) Uint64WithLabel(name, labelKey, labelValue string) uint64 {
	f := m.Float64WithLabel(name, labelKey, labelValue)
	if f < 0 {
		return 0
	}
	return uint64(f)
}

// Has reports whether at least one sample exists for the metric.
func (m *Metrics) Has(name string) bool {
	return len(m.data[name]) > 0
}

// parseLine splits one sample line:
//
//	`metric{label="val"} 42.0` -> ("metric", {"label":"val"}, "42.0")
//	`metric 42.0`              -> ("metric", nil, "42.0")
func parseLine(line string) (name string, labels map[string]string, value string) {
	braceIdx := strings.IndexByte(line, '{')

	var rest string
	if braceIdx >= 0 {
		name = line[:braceIdx]

		closeIdx := strings.IndexByte(line[braceIdx:], '}')
		if closeIdx < 0 {
			return "", nil, ""
		}

		labels = parseLabels(line[braceIdx+1 : braceIdx+closeIdx])
		rest = strings.TrimSpace(line[braceIdx+closeIdx+1:])
	} else {
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx < 0 {
			spaceIdx = strings.IndexByte(line, '\t')
			if spaceIdx < 0 {
				return "", nil, ""
			}
		}
		name = line[:spaceIdx]
		rest = strings.TrimSpace(line[spaceIdx:])
	}

	// Optional trailing timestamp after the value.
	if spaceIdx := strings.IndexByte(rest, ' '); spaceIdx >= 0 {
		value = rest[:spaceIdx]
	} else {
		value = rest
	}

	return name, labels, value
}

// parseLabels splits `key="val",key2="val2"`. Commas inside quoted values
// are not handled; SFU metric labels never contain them.
func parseLabels(s string) map[string]string {
	if s == "" {
		return nil
	}

	labels := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		eqIdx := strings.IndexByte(pair, '=')
		if eqIdx < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eqIdx])
		val := strings.Trim(strings.TrimSpace(pair[eqIdx+1:]), "\"")
		if key != "" {
			labels[key] = val
		}
	}

	return labels
}
