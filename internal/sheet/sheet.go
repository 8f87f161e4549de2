// Package sheet reads and appends library rows in the Google spreadsheet.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/eliseohh/moviebot/internal/monitor"
	"github.com/eliseohh/moviebot/internal/movie"
	"github.com/eliseohh/moviebot/internal/ttlcache"
)

const (
	recordsTTL   = 3 * time.Minute
	worksheetTTL = 5 * time.Minute
)

var ErrNotFound = errors.New("spreadsheet not found")

// Header aliases accepted for each column.
var headerAliases = map[string][]string{
	"film":           {"Фильм", "Название", "Film", "Title"},
	"year":           {"Год", "Year"},
	"genre":          {"Жанр", "Genre", "жанр"},
	"rating":         {"Оценка", "Rating", "rating"},
	"comment":        {"Комментарий", "Comment"},
	"type":           {"Тип", "Type"},
	"recommendation": {"Рекомендация", "Recommendation"},
	"owner":          {"Владелец", "Чье", "Owner"},
	"added":          {"Добавлено", "Timestamp", "Дата", "Added"},
}

type meta struct {
	id        string
	title     string
	worksheet string
}

// Client is safe for concurrent use.
type Client struct {
	backend Backend
	ref     Ref
	now     func() time.Time

	mu      sync.Mutex
	meta    *ttlcache.Cache[string, meta]
	records *ttlcache.Cache[string, []movie.Record]
}

func New(backend Backend, ref Ref) *Client {
	return &Client{
		backend: backend,
		ref:     ref,
		now:     time.Now,
		meta:    ttlcache.New[string, meta](worksheetTTL, 1),
		records: ttlcache.New[string, []movie.Record](recordsTTL, 1),
	}
}

func (c *Client) resolve(ctx context.Context) (meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.meta.Get(""); ok {
		return m, nil
	}
	id := c.ref.Value
	if c.ref.Kind == RefTitle {
		var err error
		id, err = c.backend.FindByTitle(ctx, c.ref.Value)
		if err != nil {
			return meta{}, c.fail(err)
		}
	}
	title, ws, err := c.backend.FirstSheet(ctx, id)
	if err != nil {
		return meta{}, c.fail(err)
	}
	m := meta{id: id, title: title, worksheet: ws}
	c.meta.Set("", m)
	return m, nil
}

// Title returns the spreadsheet and first worksheet titles.
func (c *Client) Title(ctx context.Context) (string, string, error) {
	m, err := c.resolve(ctx)
	if err != nil {
		return "", "", err
	}
	return m.title, m.worksheet, nil
}

// Records returns every data row of the first worksheet. Results are cached
// for three minutes and invalidated by Append.
func (c *Client) Records(ctx context.Context) ([]movie.Record, error) {
	if recs, ok := c.records.Get(""); ok {
		return recs, nil
	}
	m, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	values, err := c.backend.Values(ctx, m.id, quote(m.worksheet))
	if err != nil {
		return nil, c.fail(err)
	}
	recs := MapRows(values)
	c.records.Set("", recs)
	return recs, nil
}

// CacheAge reports how many rows are cached and how old they are.
func (c *Client) CacheAge() (int, time.Duration, bool) {
	recs, ok := c.records.Get("")
	if !ok {
		return 0, 0, false
	}
	age, _ := c.records.Age("")
	return len(recs), age, true
}

// Append writes entry as a new row and drops the records cache.
func (c *Client) Append(ctx context.Context, entry movie.Entry) error {
	m, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	cells := entry.Row(c.now())
	row := make([]interface{}, len(cells))
	for i, v := range cells {
		row[i] = v
	}
	if err := c.backend.Append(ctx, m.id, quote(m.worksheet), row); err != nil {
		return c.fail(err)
	}
	c.records.Clear()
	return nil
}

// Invalidate drops the cached rows and metadata.
func (c *Client) Invalidate() {
	c.records.Clear()
	c.meta.Clear()
}

func (c *Client) fail(err error) error {
	monitor.Record("sheets", err)
	return err
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// MapRows turns a header row plus data rows into records. Unknown columns are
// ignored, rows with every known cell empty are skipped.
func MapRows(values [][]interface{}) []movie.Record {
	if len(values) < 2 {
		return nil
	}
	index := make(map[string]int)
	for i, h := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(h))
		for field, aliases := range headerAliases {
			if _, seen := index[field]; seen {
				continue
			}
			for _, a := range aliases {
				if name == a {
					index[field] = i
					break
				}
			}
		}
	}
	cell := func(row []interface{}, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) || row[i] == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(row[i]))
	}

	var out []movie.Record
	for _, row := range values[1:] {
		r := movie.Record{
			Added:          cell(row, "added"),
			Film:           cell(row, "film"),
			Year:           cell(row, "year"),
			Genre:          cell(row, "genre"),
			Rating:         cell(row, "rating"),
			Comment:        cell(row, "comment"),
			Type:           cell(row, "type"),
			Recommendation: cell(row, "recommendation"),
			Owner:          cell(row, "owner"),
		}
		if r == (movie.Record{}) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Explain turns an access error into the Russian hint shown to users.
func Explain(err error, serviceAccount string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "Таблица не найдена. Проверьте GOOGLE_SHEET_NAME и откройте доступ сервисному аккаунту" + accountSuffix(serviceAccount) + "."
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden:
			if strings.Contains(gerr.Message, "has not been used") || strings.Contains(gerr.Message, "disabled") {
				return "Google Sheets API не включен в проекте сервисного аккаунта."
			}
			return "Нет доступа к таблице. Поделитесь ею с сервисным аккаунтом" + accountSuffix(serviceAccount) + "."
		case http.StatusNotFound:
			return "Таблица не найдена. Проверьте GOOGLE_SHEET_NAME."
		}
	}
	return "Google Sheets недоступен: " + err.Error()
}

func accountSuffix(email string) string {
	if email == "" {
		return ""
	}
	return " (" + email + ")"
}
