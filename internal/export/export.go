// Package export writes extracted bills and transactions to a spreadsheet.
package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/model"
)

const dateLayout = "2006-01-02"

// Record is one processed message as stored in its context marker.
type Record struct {
	model.Context
}

// Subject returns the message subject, if the marker carried the message.
func (r Record) Subject() string {
	if r.Message == nil {
		return ""
	}
	return r.Message.Subject
}

// From returns the first sender address.
func (r Record) From() string {
	if r.Message == nil || len(r.Message.From) == 0 {
		return ""
	}
	return r.Message.From[0].Address
}

// Collect loads every context marker under root. Unreadable markers are
// logged and skipped.
func Collect(fs afero.Fs, root string) ([]Record, error) {
	var records []Record
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" || filepath.Base(filepath.Dir(path)) != ".context" {
			return nil
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return eris.Wrapf(err, "export: read %s", path)
		}
		var c model.Context
		if err := json.Unmarshal(data, &c); err != nil {
			zap.L().Warn("export: skipping unreadable marker", zap.String("path", path), zap.Error(err))
			return nil
		}
		records = append(records, Record{Context: c})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "export: walk %s", root)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreationTime.Equal(records[j].CreationTime) {
			return records[i].CreationTime.Before(records[j].CreationTime)
		}
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

var (
	itemHeader = []string{"Date", "Subject", "From", "Kind", "Filename", "Hash", "Artifact"}
	billHeader = []string{"Date", "Filename", "Hash", "Provider", "Kind", "Amount Due", "Due Date",
		"Period", "Status", "Description"}
	transactionHeader = []string{"Date", "Filename", "Hash", "Transaction Date", "Amount", "Description",
		"Type", "Category", "Status", "Due Date", "Merchant", "Merchant Type"}
)

// Build assembles the workbook for records.
func Build(records []Record) (*xlsx.File, error) {
	f := xlsx.NewFile()
	items, err := addSheet(f, "Items", itemHeader)
	if err != nil {
		return nil, err
	}
	bills, err := addSheet(f, "Bills", billHeader)
	if err != nil {
		return nil, err
	}
	txs, err := addSheet(f, "Transactions", transactionHeader)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		date := ""
		if !r.CreationTime.IsZero() {
			date = r.CreationTime.Format(dateLayout)
		}
		kind, artifact := "", ""
		if r.Artifact != nil {
			kind, artifact = r.Artifact.Kind, r.Artifact.Path
		}
		row := items.AddRow()
		addStrings(row, date, r.Subject(), r.From(), kind, r.Filename, r.Hash, artifact)

		for _, b := range r.Bills {
			row := bills.AddRow()
			addStrings(row, date, r.Filename, r.Hash, b.Provider, b.Kind)
			row.AddCell().SetFloat(b.AmountDue)
			addStrings(row, b.DueDate, b.Period, b.Status, b.Description)
		}
		for _, t := range r.Transactions {
			row := txs.AddRow()
			addStrings(row, date, r.Filename, r.Hash, t.Date)
			row.AddCell().SetFloat(t.Amount)
			addStrings(row, t.Description, t.Type, t.Category, t.Status, t.DueDate,
				t.MerchantOrganization, t.MerchantType)
		}
	}
	return f, nil
}

// WriteWorkbook writes the workbook for records to w.
func WriteWorkbook(w io.Writer, records []Record) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

// Save writes the workbook for records to path.
func Save(path string, records []Record) error {
	f, err := Build(records)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	addStrings(sheet.AddRow(), header...)
	return sheet, nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
