package generators

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"device-engine/internal/engineerr"
	"device-engine/internal/models"
)

// ErrNoValue signals that a generator has nothing to emit this tick. It is
// not a failure: runAttribute skips the tick silently instead of treating
// it like a generator error, and never hands a nil value to encodePayload.
var ErrNoValue = errors.New("generators: no value for this tick")

// replayGenerator replays a pre-recorded file (CSV or JSON-lines), opened
// once at device start. The attribute's own intervalMs drives the tempo;
// the source file's row timing is intentionally ignored.
type replayGenerator struct {
	rows  []interface{}
	pos   int
	loop  bool
	lastV interface{}
}

func newReplayGenerator(spec models.GeneratorSpec) (Generator, error) {
	if spec.FilePath == "" {
		return nil, engineerr.NewValidation("generator.filePath", "replay generator requires a filePath")
	}

	format := spec.Format
	if format == "" {
		format = "csv"
	}

	var rows []interface{}
	var err error
	switch format {
	case "csv":
		rows, err = loadCSVColumn(spec.FilePath, spec.Column)
	case "jsonl":
		rows, err = loadJSONLColumn(spec.FilePath, spec.Column)
	default:
		return nil, engineerr.NewValidation("generator.format", "unknown replay format: "+format)
	}
	if err != nil {
		return nil, err
	}

	return &replayGenerator{rows: rows, loop: spec.Loop}, nil
}

func loadCSVColumn(path, column string) ([]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.NewValidation("generator.filePath", err.Error())
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, engineerr.NewValidation("generator.filePath", "empty or invalid csv: "+err.Error())
	}

	colIdx := 0
	if column != "" {
		colIdx = -1
		for i, h := range header {
			if h == column {
				colIdx = i
				break
			}
		}
		if colIdx < 0 {
			return nil, engineerr.NewValidation("generator.column", "column not found in csv header: "+column)
		}
	}

	var out []interface{}
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if colIdx >= len(rec) {
			continue
		}
		out = append(out, parseScalar(rec[colIdx]))
	}
	return out, nil
}

func loadJSONLColumn(path, column string) ([]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engineerr.NewValidation("generator.filePath", err.Error())
	}
	defer f.Close()

	var out []interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if column == "" {
			out = append(out, row)
			continue
		}
		if v, ok := row[column]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func parseScalar(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func (g *replayGenerator) Next(_ time.Time) (interface{}, error) {
	if len(g.rows) == 0 {
		return nil, ErrNoValue
	}
	if g.pos >= len(g.rows) {
		if g.loop {
			g.pos = 0
		} else {
			return g.lastV, nil
		}
	}
	v := g.rows[g.pos]
	g.pos++
	g.lastV = v
	return v, nil
}

func (g *replayGenerator) Close() error { return nil }
