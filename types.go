package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	partitionKey = "pk"
	sortKey      = "sk"
)

// a row from the source dataset plus its generated table keys. Serialized as
// a flat JSON object, which is both the SQS message body and the item shape
type Record struct {
	PK     string
	SK     int64 // epoch milliseconds
	Fields map[string]string
}

// the attribute map written to the table: csv fields as strings, pk string, sk number
func (r Record) Item() map[string]any {
	item := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		item[k] = v
	}
	item[partitionKey] = r.PK
	item[sortKey] = r.SK
	return item
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Item())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record body is null")
	}

	pk, ok := raw[partitionKey].(string)
	if !ok || pk == "" {
		return fmt.Errorf("record is missing %q", partitionKey)
	}
	num, ok := raw[sortKey].(json.Number)
	if !ok {
		return fmt.Errorf("record is missing numeric %q", sortKey)
	}
	sk, err := num.Int64()
	if err != nil {
		return fmt.Errorf("record %q: %w", sortKey, err)
	}

	fields := make(map[string]string, len(raw)-2)
	for k, v := range raw {
		if k == partitionKey || k == sortKey {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("record field %q is not a string", k)
		}
		fields[k] = s
	}

	r.PK = pk
	r.SK = sk
	r.Fields = fields
	return nil
}

// copy with new keys; Fields is shared, it is never mutated after load
func (r Record) withKeys(pk string, sk int64) Record {
	return Record{PK: pk, SK: sk, Fields: r.Fields}
}
