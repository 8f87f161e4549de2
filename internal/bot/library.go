package bot

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/moviebot/internal/logging"
	"github.com/eliseohh/moviebot/internal/movie"
)

const (
	pageSize      = 5
	topLimit      = 20
	listLimit     = 10
	recentWindow  = 30 * 24 * time.Hour
	exportSheet   = "Фильмы"
	exportFileFmt = "moviebot-%s.xlsx"
)

var exportHeaders = []string{
	"Добавлено", "Фильм", "Год", "Жанр", "Оценка", "Комментарий", "Тип", "Рекомендация", "Владелец",
}

func (b *Bot) handleList(c tele.Context) error   { return b.sendPage(c, cmdList, 0) }
func (b *Bot) handleTop(c tele.Context) error    { return b.sendPage(c, cmdTop, 0) }
func (b *Bot) handleRecent(c tele.Context) error { return b.sendPage(c, cmdRecent, 0) }

// handlePageCallback parses "page:<cmd>:<n>"; a malformed n means page 0.
func (b *Bot) handlePageCallback(c tele.Context, data string) error {
	rest := strings.TrimPrefix(data, cbPagePrefix)
	cmd, raw, _ := strings.Cut(rest, ":")
	page, err := strconv.Atoi(raw)
	if err != nil {
		page = 0
	}
	return b.sendPage(c, cmd, page)
}

// pageItems selects and orders the records shown by a paginated command.
func pageItems(cmd string, records []movie.Record, now time.Time) (string, []movie.Record, bool) {
	switch cmd {
	case cmdList:
		return headerList, movie.SortByAdded(records), true
	case cmdTop:
		return headerTop, movie.TopByRating(records, topLimit), true
	case cmdRecent:
		return headerRecent, movie.Recent(records, now, recentWindow), true
	}
	return "", nil, false
}

// renderPage clamps page into range and returns the text and the clamped page.
func renderPage(cmd, header string, items []movie.Record, page int) (string, int, int) {
	pages := max(1, (len(items)+pageSize-1)/pageSize)
	page = max(0, min(page, pages-1))
	start := page * pageSize
	end := min(start+pageSize, len(items))

	lines := make([]string, 0, end-start)
	for i, r := range items[start:end] {
		if cmd == cmdTop {
			lines = append(lines, fmt.Sprintf("%d. %s", start+i+1, movie.FormatEntry(r)))
		} else {
			lines = append(lines, movie.FormatEntry(r))
		}
	}
	return header + ":\n" + strings.Join(lines, "\n"), page, pages
}

func (b *Bot) sendPage(c tele.Context, cmd string, page int) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	header, items, known := pageItems(cmd, records, b.now())
	if !known {
		return nil
	}
	if len(items) == 0 {
		return c.Send(msgNoEntries)
	}
	text, page, pages := renderPage(cmd, header, items, page)
	return b.sendPanel(c, text, pageKeyboard(cmd, page, pages))
}

func formatList(header string, records []movie.Record, limit int) string {
	lines := []string{header}
	for i, r := range records {
		if i >= limit {
			break
		}
		lines = append(lines, movie.FormatEntry(r))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) handleFind(c tele.Context) error {
	genre := strings.TrimSpace(c.Message().Payload)
	if genre == "" {
		return c.Send(msgFindUsage)
	}
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	found := movie.FilterByGenre(records, genre)
	if len(found) == 0 {
		return c.Send(msgFindNotFound)
	}
	return c.Send(formatList(msgFoundHeader, found, listLimit))
}

func (b *Bot) handleSearch(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send(msgSearchUsage)
	}
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	found := movie.SearchTitle(records, query)
	escaped := html.EscapeString(query)
	if len(found) == 0 {
		return c.Send(fmt.Sprintf(msgSearchNotFound, escaped))
	}
	text := formatList(fmt.Sprintf(msgSearchHeader, escaped), found, listLimit)
	if len(found) > listLimit {
		text += fmt.Sprintf(msgSearchMore, len(found)-listLimit)
	}
	return c.Send(text)
}

func (b *Bot) handleOwner(c tele.Context) error {
	owner := movie.NormalizeOwner(c.Message().Payload)
	if owner == "" {
		return c.Send(msgOwnerUsage)
	}
	return b.sendOwner(c, owner)
}

func (b *Bot) sendOwner(c tele.Context, owner string) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "")
	if !ok {
		return nil
	}
	found := movie.FilterByOwner(records, owner)
	if len(found) == 0 {
		return c.Send(fmt.Sprintf(msgOwnerNotFound, owner))
	}
	return c.Send(formatList(fmt.Sprintf(msgOwnerHeader, owner), found, listLimit))
}

// handleExport sends the whole library as an xlsx document.
func (b *Bot) handleExport(c tele.Context) error {
	b.typing(c)
	records, ok := b.safeRecords(c, "выгрузку")
	if !ok {
		return nil
	}
	if len(records) == 0 {
		return c.Send(msgExportEmpty)
	}
	data, err := exportXLSX(records)
	if err != nil {
		logging.LogError(b.logger, "export failed", err)
		return c.Send(msgExportFailed)
	}
	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: fmt.Sprintf(exportFileFmt, b.now().Format("2006-01-02")),
		MIME:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Caption:  fmt.Sprintf(msgExportCaption, len(records)),
	}
	return c.Send(doc)
}

// exportXLSX writes records in sheet column order with a bold header row.
func exportXLSX(records []movie.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for r, rec := range records {
		values := []any{
			rec.Added, rec.Film, exportNumber(rec.Year), rec.Genre, exportNumber(rec.Rating),
			rec.Comment, rec.Type, rec.Recommendation, rec.Owner,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportNumber keeps numeric cells numeric so the sheet can sort them.
func exportNumber(s string) any {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return v
	}
	return s
}
