package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadCSV(t *testing.T) {
	p := writeFile(t, "trials.csv", "\uFEFFStatus,Phases,Enrollment,Locations\n"+
		"Completed,Phase 2,10,\"Boston, MA, United States\"\n"+
		"Recruiting,NA,,\n"+
		" Withdrawn ,N/A,30,\"Paris, France\"\n")

	tbl, err := Load(p, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "trials.csv", tbl.Name)
	assert.Equal(t, []string{"Status", "Phases", "Enrollment", "Locations"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())

	assert.Equal(t, Present("Boston, MA, United States"), tbl.Value(0, "Locations"))
	assert.True(t, tbl.Value(1, "Phases").Null)
	assert.True(t, tbl.Value(1, "Enrollment").Null)
	assert.True(t, tbl.Value(1, "Locations").Null)
	assert.Equal(t, " Withdrawn ", tbl.Value(2, "Status").Text)
	assert.True(t, tbl.Value(2, "Phases").Null)
	assert.True(t, tbl.Value(0, "Nope").Null)
}

func TestLoadKeepsCellTextVerbatim(t *testing.T) {
	p := writeFile(t, "trials.csv", "Status,Phases,Acronym\n"+
		" NA ,  ,\tCOVID-Tx \n"+
		"NA,n/a,\n")

	tbl, err := Load(p, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, Present(" NA "), tbl.Value(0, "Status"), "only exact NA tokens are absent")
	assert.Equal(t, Present("  "), tbl.Value(0, "Phases"))
	assert.Equal(t, Present("\tCOVID-Tx "), tbl.Value(0, "Acronym"))
	assert.True(t, tbl.Value(1, "Status").Null)
	assert.True(t, tbl.Value(1, "Phases").Null)
	assert.True(t, tbl.Value(1, "Acronym").Null)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "Status,Phases,Acronym\n\" NA \",\"  \",\"\tCOVID-Tx \"\n,,\n", buf.String())
}

func TestLoadTSVAndCustomNA(t *testing.T) {
	p := writeFile(t, "trials.tsv", "Status\tEnrollment\nCompleted\t-\nActive\t5\n")

	opt := DefaultOptions()
	opt.NAValues = []string{"-"}
	tbl, err := Load(p, opt)
	require.NoError(t, err)

	assert.True(t, tbl.Value(0, "Enrollment").Null)
	assert.Equal(t, "5", tbl.Value(1, "Enrollment").Text)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(t.TempDir(), DefaultOptions())
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
	})

	t.Run("unknown extension reads as csv", func(t *testing.T) {
		p := writeFile(t, "trials.dat", "Status,Enrollment\nRecruiting,10\n")
		tbl, err := Load(p, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{"Status", "Enrollment"}, tbl.Columns)
		assert.Equal(t, 1, tbl.Len())
	})

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "inconsistent column count", content: "a,b\n1,2\n3\n", want: "wrong number of fields"},
		{name: "empty file", content: "", want: "no header row"},
		{name: "duplicate header", content: "a,a\n1,2\n", want: "duplicate column"},
		{name: "invalid utf8", content: "a,b\n1,\xff\xfe\n", want: "invalid UTF-8"},
		{name: "bare quote", content: "a,b\n1,x\"y\n", want: "bare \""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, "bad.csv", tt.content)
			_, err := Load(p, DefaultOptions())
			var fmtErr *FormatError
			require.ErrorAs(t, err, &fmtErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTableHelpers(t *testing.T) {
	tbl := &Table{
		Columns: []string{"A", "B", "C"},
		Rows: []Row{
			{Present("1"), Present("x"), Absent()},
			{Present("2"), Absent(), Present("z")},
		},
	}

	dropped := tbl.DropColumns("B", "Missing")
	assert.Equal(t, []string{"A", "C"}, dropped.Columns)
	assert.Equal(t, Row{Present("1"), Absent()}, dropped.Rows[0])
	assert.Equal(t, []string{"A", "B", "C"}, tbl.Columns, "source must not change")

	clone := tbl.Clone()
	clone.SetColumn("D", []Field{Present("d1"), Present("d2")})
	clone.SetColumn("A", []Field{Present("9"), Present("8")})
	assert.Equal(t, []string{"A", "B", "C", "D"}, clone.Columns)
	assert.Equal(t, "9", clone.Value(0, "A").Text)
	assert.Equal(t, "1", tbl.Value(0, "A").Text)
	assert.Len(t, tbl.Rows[0], 3)

	assert.Equal(t, []Field{Present("x"), Absent()}, tbl.Column("B"))
	assert.Nil(t, tbl.Column("nope"))
}

func TestWriteCSV(t *testing.T) {
	tbl := &Table{
		Columns: []string{"Status", "Locations"},
		Rows:    []Row{{Present("Completed"), Present("Boston, US")}, {Absent(), Present("Paris")}},
	}
	b, err := CSVBytes(tbl)
	require.NoError(t, err)
	assert.Equal(t, "Status,Locations\nCompleted,\"Boston, US\"\n,Paris\n", string(b))
}

func TestLoaderMemoizes(t *testing.T) {
	p := writeFile(t, "trials.csv", "Status\nCompleted\n")
	l := NewLoader(logrus.New(), p, DefaultOptions())

	first, err := l.Load(context.Background())
	require.NoError(t, err)

	// the file is gone but the cached table survives until restart
	require.NoError(t, os.Remove(p))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := l.Load(context.Background())
			assert.NoError(t, err)
			assert.Same(t, first, again)
		}()
	}
	wg.Wait()
}

func TestLoaderDoesNotCacheFailure(t *testing.T) {
	p := filepath.Join(t.TempDir(), "late.csv")
	l := NewLoader(logrus.New(), p, DefaultOptions())

	_, err := l.Load(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	require.NoError(t, os.WriteFile(p, []byte("Status\nCompleted\n"), 0o644))
	tbl, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestLoaderHonoursContext(t *testing.T) {
	p := writeFile(t, "trials.csv", "Status\nCompleted\n")
	l := NewLoader(logrus.New(), p, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a cancelled caller may still win the race with a fast read
	if _, err := l.Load(ctx); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func writeXLSX(t *testing.T, sheets map[string][][]string, order []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "trials.xlsx")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	add := func(name, body string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	var wb, rels strings.Builder
	wb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	rels.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Relationships>`)
	for i, name := range order {
		fmt.Fprintf(&wb, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, name, i+1, i+1)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Target="worksheets/sheet%d.xml"/>`, i+1, i+1)

		var sb strings.Builder
		sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><worksheet><sheetData>`)
		for r, cells := range sheets[name] {
			fmt.Fprintf(&sb, `<row r="%d">`, r+1)
			for c, v := range cells {
				if v == "" {
					continue
				}
				fmt.Fprintf(&sb, `<c r="%c%d" t="inlineStr"><is><t>%s</t></is></c>`, 'A'+c, r+1, v)
			}
			sb.WriteString(`</row>`)
		}
		sb.WriteString(`</sheetData></worksheet>`)
		add(fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), sb.String())
	}
	wb.WriteString(`</sheets></workbook>`)
	rels.WriteString(`</Relationships>`)
	add("xl/workbook.xml", wb.String())
	add("xl/_rels/workbook.xml.rels", rels.String())

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestLoadXLSX(t *testing.T) {
	p := writeXLSX(t, map[string][][]string{
		"Notes": {{"placeholder"}},
		"Trials": {
			{"Status", "Phases", "Enrollment"},
			{"Completed", "Phase 1", "12"},
			{"Recruiting", "", "40"},
		},
	}, []string{"Notes", "Trials"})

	t.Run("by name", func(t *testing.T) {
		opt := DefaultOptions()
		opt.SheetName = "trials"
		tbl, err := Load(p, opt)
		require.NoError(t, err)
		assert.Equal(t, []string{"Status", "Phases", "Enrollment"}, tbl.Columns)
		require.Equal(t, 2, tbl.Len())
		assert.True(t, tbl.Value(1, "Phases").Null)
		assert.Equal(t, "40", tbl.Value(1, "Enrollment").Text)
	})

	t.Run("by index", func(t *testing.T) {
		opt := DefaultOptions()
		opt.SheetIndex = 2
		tbl, err := Load(p, opt)
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("unknown sheet", func(t *testing.T) {
		opt := DefaultOptions()
		opt.SheetName = "Other"
		_, err := Load(p, opt)
		var fmtErr *FormatError
		require.ErrorAs(t, err, &fmtErr)
		assert.Contains(t, err.Error(), "Notes, Trials")
	})

	t.Run("not a zip", func(t *testing.T) {
		bad := writeFile(t, "broken.xlsx", "plain text")
		_, err := Load(bad, DefaultOptions())
		var fmtErr *FormatError
		require.ErrorAs(t, err, &fmtErr)
	})
}
