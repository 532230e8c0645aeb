package entity

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// streamCSV reads the file at path and sends every row, header included, to
// the row channel. Both channels are closed when reading completes.
func streamCSV(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrap(err, "csv: open file")
			return
		}
		defer f.Close()

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
