// Package recommend builds AI recommendation prompts and turns model answers
// into Telegram HTML with quick-add data.
package recommend

import (
	"strings"
)

const (
	taskProfile = "Task: recommend NEW movies based on watch history and ratings.\n" +
		"NEW means movie title must be absent in watched list.\n\n"
	taskQuery = "Task: fulfill the exact user request for movie recommendations.\n" +
		"Primary goal is semantic relevance to the request.\n" +
		"Use taste profile only as a secondary personalization hint.\n" +
		"Suggested movie title must be absent in watched list.\n" +
		"Ignore any candidate that does not match the request topic.\n\n"
	recentPrefix     = "Do NOT suggest these titles (already recently recommended):\n"
	profilePrefix    = "Taste profile from Google Sheets:\n"
	candidatesPrefix = "TMDB candidate pool:\n"
	candidateLock    = "If candidate pool is provided and non-empty, select recommendations only from that pool.\n" +
		"Do not invent or substitute titles outside the pool.\n"
	outputRules = "Output format requirements:\n" +
		"1) Russian language only.\n" +
		"2) Exactly 5-8 numbered recommendations.\n" +
		"3) Every item must be: <Title (Year)> - <one short reason>.\n" +
		"4) Year must be 2000 or newer.\n" +
		"5) Then heading 'Дикая карта:' and one extra item with reason.\n" +
		"6) No markdown syntax (** or __)."
	outputRulesQuery = "Output format requirements:\n" +
		"1) Russian language only.\n" +
		"2) Follow user request strictly by theme and constraints.\n" +
		"3) If user asked for N movies, return exactly N (3..10). If N is absent, return exactly 5.\n" +
		"4) Year must be 2000 or newer.\n" +
		"5) Every item must be: <Title (Year)> - <brief plot detail> | <why it matches request>.\n" +
		"6) Use real, well-known movies only; do not invent titles.\n" +
		"7) No wildcard section and no markdown syntax (** or __)."

	// NoCandidates replaces the candidate pool when it was not collected.
	NoCandidates = "TMDB candidates were not used."

	maxRecentInPrompt  = 40
	maxBlockedInPrompt = 200
)

// PromptInput describes one recommendation request.
type PromptInput struct {
	Request    string
	Profile    string
	Candidates string
	Recent     []string
	// Query switches to the strict mode used by /ai: the request wins over
	// the profile and no wildcard is asked for.
	Query bool
	// RestrictToPool tells the model to pick only from Candidates.
	RestrictToPool bool
}

func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	if in.Query {
		sb.WriteString(taskQuery)
	} else {
		sb.WriteString(taskProfile)
	}
	sb.WriteString("User request:\n")
	sb.WriteString(in.Request)
	sb.WriteString("\n\n")
	if len(in.Recent) > 0 {
		recent := in.Recent
		if len(recent) > maxRecentInPrompt {
			recent = recent[:maxRecentInPrompt]
		}
		sb.WriteString(recentPrefix)
		sb.WriteString(strings.Join(recent, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString(profilePrefix)
	sb.WriteString(in.Profile)
	sb.WriteString("\n\n")
	sb.WriteString(candidatesPrefix)
	candidates := in.Candidates
	if candidates == "" {
		candidates = NoCandidates
	}
	sb.WriteString(candidates)
	sb.WriteString("\n\n")
	if in.RestrictToPool {
		sb.WriteString(candidateLock)
	}
	if in.Query {
		sb.WriteString(outputRulesQuery)
	} else {
		sb.WriteString(outputRules)
	}
	return sb.String()
}

// SinglePickPrompt asks for exactly one unseen movie from 2000 or later.
func SinglePickPrompt(profile string, blocked []string) string {
	if len(blocked) > maxBlockedInPrompt {
		blocked = blocked[:maxBlockedInPrompt]
	}
	return "Задача: предложи РОВНО 1 НОВЫЙ фильм, который пользователь еще НЕ смотрел.\n" +
		"Нужно опираться на высоко оцененные жанры и похожесть по сюжету.\n" +
		"Год фильма должен быть не раньше 2000.\n" +
		"Не делай вывод только по одному общему широкому жанру.\n" +
		"В обосновании укажи конкретные совпадения (2-3 жанра или сюжетные мотивы).\n" +
		"Нельзя предлагать фильмы из списка ниже.\n\n" +
		"Уже просмотрено: " + strings.Join(blocked, ", ") + "\n\n" +
		"Профиль вкуса:\n" +
		profile + "\n\n" +
		"Ответ в формате:\n" +
		"<Название (Год)> - <почему это подходит>\n" +
		"Без markdown."
}
