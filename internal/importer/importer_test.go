package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestParseSemicolonWithBOM(t *testing.T) {
	data := "\xEF\xBB\xBFCompany Name;First Name;Email;Mobile Phone;Segment\n" +
		"Padaria Central;Ana;ana@padaria.pt;+351910000000;E\n" +
		";Rui;rui@x.pt;;\n" +
		"\n" +
		"Oficina Norte;;;;\n"
	res, err := Parse(strings.NewReader(data), "D")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Read != 3 || res.Skipped != 1 || len(res.Rows) != 2 {
		t.Fatalf("unexpected counts: read=%d skipped=%d rows=%d", res.Read, res.Skipped, len(res.Rows))
	}
	first := res.Rows[0]
	if first.CompanyName != "Padaria Central" || first.FirstName != "Ana" || first.PhoneMobile != "+351910000000" || first.SegmentKey != "E" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if res.Rows[1].SegmentKey != "D" {
		t.Fatalf("default segment not applied: %+v", res.Rows[1])
	}
}

func TestParseCommaAliases(t *testing.T) {
	data := "Business Name,Work Phone,City,Website\nBarbearia Sol,210000000,Lisboa,sol.pt\n"
	res, err := Parse(strings.NewReader(data), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(res.Rows))
	}
	c := res.Rows[0]
	if c.CompanyName != "Barbearia Sol" || c.PhoneWork != "210000000" || c.City != "Lisboa" || c.Website != "sol.pt" {
		t.Fatalf("unexpected row: %+v", c)
	}
}

func TestParseRequiresCompanyColumn(t *testing.T) {
	if _, err := Parse(strings.NewReader("Email,City\na@b.pt,Porto\n"), ""); err == nil {
		t.Fatalf("expected missing company column error")
	}
	if _, err := Parse(strings.NewReader(""), ""); err == nil {
		t.Fatalf("expected empty csv error")
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://leads/2024/july.csv")
	if err != nil || bucket != "leads" || key != "2024/july.csv" {
		t.Fatalf("unexpected parse: %s %s %v", bucket, key, err)
	}
	for _, bad := range []string{"leads/x.csv", "s3://leads", "s3:///x.csv"} {
		if _, _, err := ParseS3URL(bad); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestOpenerReadsS3AndFiles(t *testing.T) {
	fake := &fakeS3{body: "Company Name\nHotel Mar\n"}
	o := &Opener{S3: fake}
	rc, err := o.Open(context.Background(), "s3://leads/july.csv")
	if err != nil {
		t.Fatal(err)
	}
	res, err := Parse(rc, "")
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if fake.bucket != "leads" || fake.key != "july.csv" || len(res.Rows) != 1 {
		t.Fatalf("unexpected s3 read: %s/%s %+v", fake.bucket, fake.key, res)
	}

	path := filepath.Join(t.TempDir(), "leads.csv")
	if err := os.WriteFile(path, []byte("Empresa\nClinica Boa\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, err = o.Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	res, err = Parse(rc, "")
	if err != nil || len(res.Rows) != 1 || res.Rows[0].CompanyName != "Clinica Boa" {
		t.Fatalf("unexpected file read: %+v %v", res, err)
	}
}
