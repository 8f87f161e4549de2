// Command offline_add queues a library entry in the local database while the
// bot or the sheet is unavailable. The bot uploads it on its next flush.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eliseohh/moviebot/internal/config"
	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/movie"
)

const (
	msgEmpty   = "Поле не может быть пустым. Попробуйте ещё раз."
	msgInvalid = "Значение не прошло проверку. Попробуйте ещё раз."
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	fmt.Println("Добавление фильма в оффлайн-режиме. Нажмите Ctrl+C для отмены.")
	entry, err := readEntry(os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("Input aborted: %v", err)
	}

	db, err := index.NewDB(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.EnqueueOffline(ctx, entry, 0); err != nil {
		log.Fatalf("Failed to queue entry: %v", err)
	}
	fmt.Println("✅ Запись сохранена локально и будет выгружена при следующем запуске бота.")
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask prints label and returns the next trimmed input line.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// required repeats the question until the answer is non-empty and check
// accepts it. check may rewrite the value.
func (p *prompter) required(label string, check func(string) (string, bool)) (string, error) {
	for {
		v, err := p.ask(label)
		if err != nil {
			return "", err
		}
		if v == "" {
			fmt.Fprintln(p.out, msgEmpty)
			continue
		}
		if check == nil {
			return v, nil
		}
		if out, ok := check(v); ok {
			return out, nil
		}
		fmt.Fprintln(p.out, msgInvalid)
	}
}

// choice maps a numbered answer onto its value; any other text is passed
// through and empty input picks def.
func (p *prompter) choice(hint, label string, options map[string]string, def string) (string, error) {
	fmt.Fprintln(p.out, hint)
	v, err := p.ask(label)
	if err != nil {
		return "", err
	}
	if mapped, ok := options[v]; ok {
		return mapped, nil
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

func readEntry(in io.Reader, out io.Writer) (movie.Entry, error) {
	p := &prompter{in: bufio.NewScanner(in), out: out}
	var (
		e   movie.Entry
		err error
	)
	year := func(v string) (string, bool) { return v, movie.ValidYear(v) }

	if e.Film, err = p.required("Название: ", nil); err != nil {
		return e, err
	}
	if e.Year, err = p.required("Год выпуска: ", year); err != nil {
		return e, err
	}
	if e.Genre, err = p.required("Жанр: ", nil); err != nil {
		return e, err
	}
	if e.Rating, err = p.required("Оценка (1-10): ", movie.ValidRating); err != nil {
		return e, err
	}
	if e.Comment, err = p.ask("Комментарий (можно оставить пустым): "); err != nil {
		return e, err
	}
	e.Type, err = p.choice("Тип (1 — фильм, 2 — сериал). По умолчанию — фильм.", "Выбор [1/2]: ",
		map[string]string{"1": movie.TypeFilm, "2": movie.TypeSeries}, movie.TypeFilm)
	if err != nil {
		return e, err
	}
	e.Recommendation, err = p.choice("Рекомендация: 1 — рекомендую, 2 — можно посмотреть, 3 — в топку.", "Выбор [1/2/3]: ",
		map[string]string{"1": movie.RecRecommend, "2": movie.RecOK, "3": movie.RecSkip}, movie.RecOK)
	if err != nil {
		return e, err
	}
	e.Owner, err = p.choice("Владелец: 1 — муж, 2 — жена. Пусто — не указан.", "Выбор [1/2]: ",
		map[string]string{"1": movie.OwnerHusband, "2": movie.OwnerWife}, "")
	if err != nil {
		return e, err
	}
	return e.Normalized(), nil
}
