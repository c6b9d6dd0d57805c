package utils

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// WriteJSONToFile writes the indented JSON representation of data to a file named by filename.
// An existing file is truncated, its permissions are kept.
// The content is synced to disk before the file is closed.
func WriteJSONToFile(filename string, data interface{}, perm os.FileMode) (err error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal data to JSON")
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", filename)
	}

	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err := f.Write(jsonData); err != nil {
		return errors.Wrapf(err, "unable to write JSON data to %s", filename)
	}

	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "unable to fsync file content to %s", filename)
	}

	return nil
}
