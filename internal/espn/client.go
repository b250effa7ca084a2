// Package espn fetches athlete game logs and the team listing from the ESPN
// public site API and maps them onto feature GameRecords.
package espn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"hoopcast/internal/common"
	"hoopcast/internal/features"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var ErrEmptyGameLog = errors.New("empty game log")

// Client talks to the ESPN public API.
type Client struct {
	base, teamsURL string
	rest           *resty.Client
}

// NewClient creates a client for the game log base URL and the teams listing URL.
func NewClient(base, teamsURL string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	return &Client{base: strings.TrimRight(base, "/"), teamsURL: teamsURL, rest: r}
}

type gameLogResp struct {
	Labels      []string             `json:"labels"`
	Events      map[string]eventInfo `json:"events"`
	SeasonTypes []seasonType         `json:"seasonTypes"`
}

type eventInfo struct {
	ID       string `json:"id"`
	GameDate string `json:"gameDate"`
	Opponent struct {
		ID string `json:"id"`
	} `json:"opponent"`
}

type seasonType struct {
	DisplayName string     `json:"displayName"`
	Categories  []category `json:"categories"`
}

type category struct {
	Type   string      `json:"type"`
	Events []statEvent `json:"events"`
}

type statEvent struct {
	EventID string   `json:"eventId"`
	Stats   []string `json:"stats"`
}

// GetGameLog fetches the season game log of athleteID. Games without a stat
// line are dropped; the rest are returned newest first.
func (c *Client) GetGameLog(ctx context.Context, athleteID, season string) ([]features.GameRecord, error) {
	path := fmt.Sprintf("/athletes/%s/gamelog", athleteID)

	params := map[string]string{}
	if season != "" {
		params["season"] = season
	}

	var body gameLogResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get(c.base + path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	games, err := mapGameLog(&body)
	if err != nil {
		return nil, fmt.Errorf("athlete %s: %w", athleteID, err)
	}

	log.Debug().
		Str("athlete_id", athleteID).
		Int("events", len(body.Events)).
		Int("games", len(games)).
		Msg("game log fetched")
	return games, nil
}

func mapGameLog(body *gameLogResp) ([]features.GameRecord, error) {
	if len(body.Events) == 0 {
		return nil, ErrEmptyGameLog
	}

	lines := make(map[string][]string)
	for _, st := range body.SeasonTypes {
		for _, cat := range st.Categories {
			if cat.Type == "total" {
				continue
			}
			for _, ev := range cat.Events {
				lines[ev.EventID] = ev.Stats
			}
		}
	}

	games := make([]features.GameRecord, 0, len(body.Events))
	for key, ev := range body.Events {
		id := ev.ID
		if id == "" {
			id = key
		}
		stats, ok := lines[id]
		if !ok {
			continue
		}

		ts, err := parseGameDate(ev.GameDate)
		if err != nil {
			log.Warn().Err(err).Str("game_id", id).Msg("skipping game with bad date")
			continue
		}
		opp, err := strconv.Atoi(ev.Opponent.ID)
		if err != nil {
			log.Warn().Str("game_id", id).Str("opponent", ev.Opponent.ID).Msg("skipping game with bad opponent id")
			continue
		}

		values := labelValues(body.Labels, stats)
		g := features.GameRecord{
			GameID:         id,
			Timestamp:      ts,
			OpponentTeamID: opp,
			MinutesPlayed:  values["MIN"],
			StatValues:     make(map[string]float64, len(common.PredictionStats)),
		}
		for _, stat := range common.PredictionStats {
			if v, ok := values[stat]; ok {
				g.StatValues[stat] = v
			}
		}
		games = append(games, g)
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].Timestamp.After(games[j].Timestamp)
	})
	return games, nil
}

// labelValues pairs numeric stat cells with their column labels. Composite
// cells such as "9-17" are skipped.
func labelValues(labels, stats []string) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for i, label := range labels {
		if i >= len(stats) {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(stats[i]), 64)
		if err != nil {
			continue
		}
		out[label] = v
	}
	return out
}

var gameDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.000-0700",
}

func parseGameDate(s string) (time.Time, error) {
	for _, layout := range gameDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised game date %q", s)
}

// Team is one entry of the provider's team listing.
type Team struct {
	ID              int
	Name            string
	Abbreviation    string
	Location        string
	DefensiveRating float64
}

type teamsResp struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team struct {
					ID           string `json:"id"`
					Name         string `json:"name"`
					Abbreviation string `json:"abbreviation"`
					Location     string `json:"location"`
				} `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

// GetTeams fetches the team listing. The listing carries no defensive
// ratings, so every team starts at defaultRating.
func (c *Client) GetTeams(ctx context.Context, defaultRating float64) ([]Team, error) {
	var body teamsResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		Get(c.teamsURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	var teams []Team
	for _, sport := range body.Sports {
		for _, league := range sport.Leagues {
			for _, entry := range league.Teams {
				id, err := strconv.Atoi(entry.Team.ID)
				if err != nil {
					continue
				}
				teams = append(teams, Team{
					ID:              id,
					Name:            entry.Team.Name,
					Abbreviation:    entry.Team.Abbreviation,
					Location:        entry.Team.Location,
					DefensiveRating: defaultRating,
				})
			}
		}
	}
	if len(teams) == 0 {
		return nil, errors.New("no teams in listing")
	}

	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

// TeamRatings maps the listing onto team id -> defensive rating.
func TeamRatings(teams []Team) map[int]float64 {
	out := make(map[int]float64, len(teams))
	for _, t := range teams {
		out[t.ID] = t.DefensiveRating
	}
	return out
}
