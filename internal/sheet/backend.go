package sheet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	spreadsheetMime = "application/vnd.google-apps.spreadsheet"

	// valueInputOption stores cells as typed so titles like "=1+1" or
	// "1/2" are not turned into formulas or dates.
	valueInputOption = "RAW"

	// callTimeout bounds every API call that arrives without a deadline.
	callTimeout = 20 * time.Second
)

var driveQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// driveQuery builds the files.list query for a spreadsheet named title.
func driveQuery(title string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		driveQuoter.Replace(title), spreadsheetMime)
}

func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, callTimeout)
}

// Backend is the subset of the Sheets and Drive APIs the client needs.
type Backend interface {
	// FindByTitle returns the id of the spreadsheet called title.
	FindByTitle(ctx context.Context, title string) (string, error)
	// FirstSheet returns the spreadsheet title and the title of its first worksheet.
	FirstSheet(ctx context.Context, id string) (spreadsheet, worksheet string, err error)
	Values(ctx context.Context, id, rng string) ([][]interface{}, error)
	Append(ctx context.Context, id, rng string, row []interface{}) error
}

type googleBackend struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// NewGoogleBackend authenticates with a service-account JSON file.
func NewGoogleBackend(ctx context.Context, credentialsPath string) (Backend, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
	}
	ss, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return &googleBackend{sheets: ss, drive: ds}, nil
}

func (g *googleBackend) FindByTitle(ctx context.Context, title string) (string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	res, err := g.drive.Files.List().Q(driveQuery(title)).Fields("files(id, name)").PageSize(10).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive files.list: %w", err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return res.Files[0].Id, nil
}

func (g *googleBackend) FirstSheet(ctx context.Context, id string) (string, string, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	res, err := g.sheets.Spreadsheets.Get(id).Fields("properties.title", "sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("spreadsheets.get: %w", err)
	}
	if len(res.Sheets) == 0 || res.Sheets[0].Properties == nil {
		return "", "", fmt.Errorf("spreadsheet %s has no worksheets", id)
	}
	title := ""
	if res.Properties != nil {
		title = res.Properties.Title
	}
	return title, res.Sheets[0].Properties.Title, nil
}

func (g *googleBackend) Values(ctx context.Context, id, rng string) ([][]interface{}, error) {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	res, err := g.sheets.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("values.get: %w", err)
	}
	return res.Values, nil
}

func (g *googleBackend) Append(ctx context.Context, id, rng string, row []interface{}) error {
	ctx, cancel := withCallTimeout(ctx)
	defer cancel()
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.sheets.Spreadsheets.Values.Append(id, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("values.append: %w", err)
	}
	return nil
}

// ServiceAccountEmail reads client_email from the credentials file, or "".
func ServiceAccountEmail(credentialsPath string) string {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return ""
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if json.Unmarshal(b, &creds) != nil {
		return ""
	}
	return creds.ClientEmail
}
