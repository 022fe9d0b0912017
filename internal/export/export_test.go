package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/trialdash/internal/clean"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/filter"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(t *testing.T) *filter.View {
	t.Helper()
	p := dataset.Present
	raw := &dataset.Table{
		Name:    "trials.csv",
		Columns: []string{"Status", "Phases", "Enrollment", "Start Date", "Locations"},
		Rows: []dataset.Row{
			{p("Completed"), p("Phase 2"), p("100"), p("2020-03-04"), p("Boston, USA")},
			{p("Recruiting"), dataset.Absent(), p("40"), p("unknown"), p("Pune, India")},
			{p("Completed"), p("Phase 1"), dataset.Absent(), p("2021-11-30"), p("Lyon, France")},
		},
	}
	tbl, err := clean.Clean(raw, clean.DefaultOptions())
	require.NoError(t, err)
	sel := filter.DefaultSelection(tbl, 0, 10)
	sel.Countries = filter.NewSet("USA", "India")
	return filter.Apply(tbl, sel)
}

func TestRows(t *testing.T) {
	v := view(t)

	out := Rows(v, DefaultOptions())
	assert.Equal(t, []string{"Status", "Phases", "Enrollment", "Start Date", "Locations", "Country", "Start Month"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "2020-03", out.Value(0, StartMonthColumn).Text)
	assert.True(t, out.Value(1, StartMonthColumn).Null)
	assert.Equal(t, "Missing_Phases", out.Value(1, "Phases").Text)
	assert.False(t, v.Source().Has(StartMonthColumn), "source table is untouched")

	plain := Rows(v, Options{})
	assert.NotContains(t, plain.Columns, StartMonthColumn)
}

func TestWriteCSVFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", DefaultFileName)
	require.NoError(t, CSVFile{Path: p}.Write(context.Background(), Rows(view(t), DefaultOptions())))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t,
		"Status,Phases,Enrollment,Start Date,Locations,Country,Start Month\n"+
			"Completed,Phase 2,100,2020-03-04,\"Boston, USA\",USA,2020-03\n"+
			"Recruiting,Missing_Phases,40,unknown,\"Pune, India\",India,\n",
		string(b))
}

func TestDatabaseSQLite(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase(logrus.New(), DatabaseConfig{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "trials.db"),
	})
	require.NoError(t, db.Start(ctx))
	defer func() { _ = db.Stop() }()

	require.NoError(t, db.Write(ctx, Rows(view(t), DefaultOptions())))
	require.NoError(t, db.Write(ctx, Rows(view(t), Options{})))

	exports, err := db.Exports(ctx)
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, 2, exports[1].Rows)
	assert.Equal(t, "trials.csv", exports[1].Source)

	rows, err := db.Trials(ctx, exports[1].ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "USA", rows[0].Country)
	assert.Equal(t, 100.0, rows[0].Enrollment)
	assert.Equal(t, "2020-03", rows[0].StartMonth)
	assert.Equal(t, "", rows[1].StartMonth)

	var data map[string]*string
	require.NoError(t, json.Unmarshal([]byte(rows[1].Data), &data))
	assert.Nil(t, data[StartMonthColumn])
	require.NotNil(t, data["Locations"])
	assert.Equal(t, "Pune, India", *data["Locations"])
}

func TestDatabaseConfigErrors(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewDatabase(logrus.New(), DatabaseConfig{Driver: "mysql"}).Start(ctx))
	assert.Error(t, NewDatabase(logrus.New(), DatabaseConfig{Driver: DriverSQLite}).Start(ctx))
	assert.Error(t, NewDatabase(logrus.New(), DatabaseConfig{Driver: DriverPostgres}).Start(ctx))
	assert.Error(t, NewDatabase(logrus.New(), DatabaseConfig{Driver: DriverSQLite}).Write(ctx, &dataset.Table{}))
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	ctx := context.Background()
	fake := &fakePutter{}
	sink := NewS3WithClient(logrus.New(), S3Config{Bucket: "trials"}, fake)

	tbl := Rows(view(t), DefaultOptions())
	require.NoError(t, sink.Write(ctx, tbl))
	assert.Equal(t, "trials", aws.ToString(fake.in.Bucket))
	assert.Equal(t, DefaultFileName, aws.ToString(fake.in.Key))
	assert.Equal(t, "text/csv", aws.ToString(fake.in.ContentType))
	want, err := dataset.CSVBytes(tbl)
	require.NoError(t, err)
	assert.Equal(t, string(want), fake.body)

	fake.err = errors.New("denied")
	assert.ErrorContains(t, sink.Write(ctx, tbl), "s3://trials/")

	_, err = NewS3(logrus.New(), S3Config{})
	assert.Error(t, err)
	s, err := NewS3(logrus.New(), S3Config{Bucket: "b", Region: "eu-west-1", AccessKeyID: "a", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultFileName, s.cfg.Key)
	assert.Equal(t, "s3://b/"+DefaultFileName, s.URI())
}
