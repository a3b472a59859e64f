// Package storage holds the persistence sinks: the local append-only jsonl
// log and the remote PostgreSQL store.
package storage

import (
	"encoding/json"
	"os"
	"path"
	"time"

	"github.com/iadeleke/domisafe/util"
)

// Clock is replaceable for tests.
var Clock = func() time.Time {
	return time.Now()
}

// Local appends records to daily-rotated json-lines files, one file per
// category per calendar day: <dir>/<category>_YYYY-MM-DD.jsonl
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	dir = util.ExpandUser(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Local{dir: dir}, nil
}

func (self *Local) currentPath(category string) string {
	day := Clock().Format("2006-01-02")
	return path.Join(self.dir, category+"_"+day+".jsonl")
}

// Record appends one flat record. A saved_at timestamp is always present.
// The file is reopened each write so rotation/cleanup can happen behind us.
func (self *Local) Record(category string, fields map[string]interface{}) error {
	record := map[string]interface{}{}
	for k, v := range fields {
		record[k] = v
	}
	if _, ok := record["saved_at"]; !ok {
		record["saved_at"] = Clock().Format(time.RFC3339)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	fio, err := os.OpenFile(self.currentPath(category), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0660)
	if err != nil {
		return err
	}
	defer fio.Close()

	if _, err := fio.Write(data); err != nil {
		return err
	}
	_, err = fio.WriteString("\n")
	return err
}
