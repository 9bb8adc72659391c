// Package excel exports discovered channels to an xlsx workbook.
package excel

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"ytgrowth/logger"
	"ytgrowth/youtube"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet all channel rows live on.
const SheetName = "New Channels"

const (
	urlColumnWidth = 50
	// maxCellChars is the xlsx per-cell character limit.
	maxCellChars = 32767
)

// headers are the fixed columns, A through F.
var headers = []string{"Channel ID", "Title", "Description", "Created At", "Subscribers", "Channel URL"}

// Workbook accumulates channel rows and writes them to an xlsx file.
// Rows from an existing workbook at the same path are loaded on Open so
// consecutive runs append rather than overwrite.
type Workbook struct {
	path string
	log  *logrus.Entry
	lock *FileLock

	rows        []youtube.ChannelInfo
	preexisting bool
}

// lockTimeout bounds how long Open waits for another process to release
// the workbook.
var lockTimeout = 10 * time.Second

// Open prepares a workbook at path, loading rows from an existing file if one
// is there. A corrupt or foreign file is logged and treated as empty; it is
// only replaced when Save succeeds. Open takes an exclusive cross-process
// lock on the workbook, released by Close, so concurrent runs cannot drop
// each other's rows.
func Open(path string, log *logrus.Entry) (*Workbook, error) {
	if log == nil {
		log = logger.Discard()
	}

	lock := NewFileLock(path)
	if err := lock.Lock(lockTimeout); err != nil {
		return nil, err
	}
	w := &Workbook{path: path, log: log, lock: lock}

	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		log.WithError(err).Warnf("excel: cannot read existing workbook %s, starting fresh", path)
		return w, nil
	}
	defer f.Close()
	w.preexisting = true

	rows, err := f.GetRows(SheetName)
	if err != nil {
		log.WithError(err).Warnf("excel: no %q sheet in %s, starting fresh", SheetName, path)
		return w, nil
	}

	for i, cols := range rows {
		if i == 0 {
			// Header row
			continue
		}
		info, err := parseRow(cols)
		if err != nil {
			log.WithError(err).Warnf("excel: skipping unreadable row %d in %s", i+1, path)
			continue
		}
		w.rows = append(w.rows, info)
	}

	if len(w.rows) > 0 {
		log.Infof("excel: loaded %d existing channels from %s", len(w.rows), path)
	}
	return w, nil
}

// parseRow converts a sheet row back into a ChannelInfo. The URL column is
// ignored; it is derived from the channel ID on save.
func parseRow(cols []string) (youtube.ChannelInfo, error) {
	if len(cols) < 5 {
		return youtube.ChannelInfo{}, fmt.Errorf("row has %d columns, want at least 5", len(cols))
	}

	id := strings.TrimSpace(cols[0])
	if id == "" {
		return youtube.ChannelInfo{}, errors.New("empty channel id")
	}

	created, err := time.Parse(time.RFC3339, strings.TrimSpace(cols[3]))
	if err != nil {
		return youtube.ChannelInfo{}, fmt.Errorf("parse created at: %w", err)
	}

	subs, err := strconv.ParseInt(strings.TrimSpace(cols[4]), 10, 64)
	if err != nil {
		return youtube.ChannelInfo{}, fmt.Errorf("parse subscribers: %w", err)
	}

	return youtube.ChannelInfo{
		ID:          id,
		Title:       cols[1],
		Description: cols[2],
		CreatedAt:   created,
		Subscribers: subs,
	}, nil
}

// Append buffers a channel row for the next Save.
func (w *Workbook) Append(info *youtube.ChannelInfo) error {
	if info == nil || info.ID == "" {
		return &ExportError{Op: "append", Path: w.path, Err: errors.New("channel missing id")}
	}
	w.rows = append(w.rows, *info)
	return nil
}

// Len returns the number of buffered rows, loaded and appended.
func (w *Workbook) Len() int {
	return len(w.rows)
}

// ChannelIDs returns the IDs of all buffered rows. Callers use this to avoid
// re-fetching channels already exported by an earlier run.
func (w *Workbook) ChannelIDs() []string {
	ids := make([]string, 0, len(w.rows))
	for _, r := range w.rows {
		ids = append(ids, r.ID)
	}
	return ids
}

// Save writes all rows, sorted by subscriber count descending, to the
// workbook file. The write goes through a temp file and rename. Saving an
// empty workbook where none existed is a no-op.
func (w *Workbook) Save() error {
	if len(w.rows) == 0 && !w.preexisting {
		w.log.Debug("excel: no rows collected, nothing to save")
		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	f.SetActiveSheet(idx)

	if err := w.writeSheet(f); err != nil {
		return err
	}

	aw, err := newAtomicWriter(w.path)
	if err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	if _, err := f.WriteTo(aw); err != nil {
		aw.Abort()
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	if err := aw.Commit(); err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}

	if fi, err := os.Stat(w.path); err == nil {
		w.log.Infof("excel: wrote %d channels to %s (%d bytes)", len(w.rows), w.path, fi.Size())
	} else {
		w.log.Infof("excel: wrote %d channels to %s", len(w.rows), w.path)
	}
	return nil
}

// Close releases the lock acquired by Open. Call it after the final Save.
func (w *Workbook) Close() error {
	return w.lock.Unlock()
}

// writeSheet renders header, rows, and styles into f.
func (w *Workbook) writeSheet(f *excelize.File) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	linkStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "0000FF", Underline: "single"}})
	if err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return &ExportError{Op: "save", Path: w.path, Err: err}
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return &ExportError{Op: "save", Path: w.path, Err: err}
		}
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", headerStyle); err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}

	// Most-subscribed first
	rows := make([]youtube.ChannelInfo, len(w.rows))
	copy(rows, w.rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Subscribers > rows[j].Subscribers })

	for i, info := range rows {
		rowNum := i + 2
		values := []interface{}{
			info.ID,
			truncateCell(info.Title),
			truncateCell(info.Description),
			info.CreatedAt.UTC().Format(time.RFC3339),
			info.Subscribers,
			info.URL(),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return &ExportError{Op: "save", Path: w.path, Err: err}
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return &ExportError{Op: "save", Path: w.path, Err: err}
			}
		}

		urlCell := fmt.Sprintf("F%d", rowNum)
		if err := f.SetCellHyperLink(SheetName, urlCell, info.URL(), "External"); err != nil {
			return &ExportError{Op: "save", Path: w.path, Err: err}
		}
	}

	if len(rows) > 0 {
		last := fmt.Sprintf("F%d", len(rows)+1)
		if err := f.SetCellStyle(SheetName, "F2", last, linkStyle); err != nil {
			return &ExportError{Op: "save", Path: w.path, Err: err}
		}
	}
	if err := f.SetColWidth(SheetName, "F", "F", urlColumnWidth); err != nil {
		return &ExportError{Op: "save", Path: w.path, Err: err}
	}
	return nil
}

// truncateCell clips a string to the xlsx cell limit.
func truncateCell(s string) string {
	if len(s) <= maxCellChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxCellChars {
		return s
	}
	return string(runes[:maxCellChars])
}

// ExportError wraps workbook failures with operation context.
// Use errors.As() to extract it:
//
//	var exportErr *excel.ExportError
//	if errors.As(err, &exportErr) {
//		fmt.Printf("workbook %s failed during %s\n", exportErr.Path, exportErr.Op)
//	}
type ExportError struct {
	// Op is the operation that failed ("append", "save", "lock").
	Op string
	// Path is the workbook file path.
	Path string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the export error.
func (e *ExportError) Error() string {
	return fmt.Sprintf("excel: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *ExportError) Unwrap() error { return e.Err }
