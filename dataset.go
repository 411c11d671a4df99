package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyHeader     = errors.New("dataset has no header row")
	ErrDuplicateColumn = errors.New("dataset header repeats a column")
)

// KeyFunc generates the partition and sort key for one record
type KeyFunc func() (pk string, sk int64)

// xid ids are k-sortable, so items written in one run cluster by creation time
func DefaultKeys() (string, int64) {
	return xid.New().String(), time.Now().UnixMilli()
}

// Dataset is the in-memory copy of the source file, loaded once per process
// and handed to the handlers. It is read-only after load.
type Dataset struct {
	header  []string
	records []Record
	keys    KeyFunc
	rekey   bool
}

type DatasetOption func(*Dataset)

func WithKeyFunc(fn KeyFunc) DatasetOption {
	return func(d *Dataset) { d.keys = fn }
}

// WithRekey makes every call to Records stamp fresh keys, so repeated runs
// insert new items instead of overwriting the ones from the previous run.
func WithRekey(rekey bool) DatasetOption {
	return func(d *Dataset) { d.rekey = rekey }
}

func LoadDataset(path string, opts ...DatasetOption) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ParseDataset(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return ds, nil
}

// ParseDataset reads a comma separated file with a header row. Rows whose
// field count differs from the header are dropped without error; a header that
// repeats a column name is rejected.
func ParseDataset(r io.Reader, opts ...DatasetOption) (*Dataset, error) {
	ds := &Dataset{keys: DefaultKeys}
	for _, opt := range opts {
		opt(ds)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	seen := make(map[string]struct{}, len(header))
	for i := range header {
		header[i] = cleanValue(header[i])
		if _, dup := seen[header[i]]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, header[i])
		}
		seen[header[i]] = struct{}{}
	}
	ds.header = header

	dropped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			dropped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(row) != len(header) {
			dropped++
			continue
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if name == partitionKey || name == sortKey {
				continue
			}
			fields[name] = cleanValue(row[i])
		}
		pk, sk := ds.keys()
		ds.records = append(ds.records, Record{PK: pk, SK: sk, Fields: fields})
	}

	log.Debug().
		Int("records", len(ds.records)).
		Int("dropped", dropped).
		Strs("header", header).
		Msg("Dataset loaded")

	return ds, nil
}

func cleanValue(s string) string {
	return strings.TrimRight(s, "\r\n")
}

func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns the records for one invocation. Without rekeying this is the
// slice stamped at load time; with rekeying it is a fresh copy per call.
func (d *Dataset) Records() []Record {
	if !d.rekey {
		return d.records
	}
	out := make([]Record, len(d.records))
	for i, r := range d.records {
		pk, sk := d.keys()
		out[i] = r.withKeys(pk, sk)
	}
	return out
}
