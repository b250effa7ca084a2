package espn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameLogJSON = `{
  "labels": ["MIN","FG","FG%","3PT","3P%","FT","FT%","REB","AST","BLK","STL","PF","TO","PTS"],
  "events": {
    "401705001": {"id": "401705001", "gameDate": "2025-03-10T00:30:00.000+00:00", "opponent": {"id": "14"}},
    "401704990": {"id": "401704990", "gameDate": "2025-03-09T00:00Z", "opponent": {"id": "2"}},
    "401704800": {"id": "401704800", "gameDate": "2025-02-16T01:00:00.000+00:00", "opponent": {"id": "31"}},
    "401704700": {"id": "401704700", "gameDate": "2025-02-10T01:00:00.000+00:00", "opponent": {"id": "5"}}
  },
  "seasonTypes": [
    {
      "displayName": "2024-25 Regular Season",
      "categories": [
        {"type": "event", "events": [
          {"eventId": "401705001", "stats": ["36","12-20","60.0","2-5","40.0","5-6","83.3","12","9","1","2","3","4","31"]},
          {"eventId": "401704990", "stats": ["33","9-17","52.9","1-4","25.0","3-3","100","8","11","0","1","2","2","22"]},
          {"eventId": "401704800", "stats": ["28","7-12","58.3","1-2","50.0","0-0","0","6","7","0","1","1","1","15"]}
        ]},
        {"type": "total", "events": [
          {"eventId": "401705001", "stats": ["0","0","0","0","0","0","0","0","0","0","0","0","0","0"]}
        ]}
      ]
    }
  ]
}`

const teamsJSON = `{"sports":[{"leagues":[{"teams":[
  {"team":{"id":"2","name":"Celtics","abbreviation":"BOS","location":"Boston"}},
  {"team":{"id":"1","name":"Hawks","abbreviation":"ATL","location":"Atlanta"}},
  {"team":{"id":"x","name":"Broken"}}
]}]}]}`

func TestGetGameLog(t *testing.T) {
	var gotPath, gotSeason string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSeason = r.URL.Query().Get("season")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(gameLogJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.URL+"/teams", time.Second)
	games, err := c.GetGameLog(context.Background(), "3112335", "2025")
	require.NoError(t, err)

	assert.Equal(t, "/athletes/3112335/gamelog", gotPath)
	assert.Equal(t, "2025", gotSeason)

	// The event without a stat line is dropped.
	require.Len(t, games, 3)
	assert.Equal(t, "401705001", games[0].GameID)
	assert.Equal(t, "401704990", games[1].GameID)
	assert.Equal(t, "401704800", games[2].GameID)

	first := games[0]
	assert.Equal(t, 14, first.OpponentTeamID)
	assert.Equal(t, 36.0, first.MinutesPlayed)
	assert.Equal(t, map[string]float64{"PTS": 31, "AST": 9, "REB": 12, "TO": 4, "BLK": 1}, first.StatValues)
	assert.True(t, first.Timestamp.Equal(time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC)))

	assert.Equal(t, 24*time.Hour+30*time.Minute, games[0].Timestamp.Sub(games[1].Timestamp))
	assert.False(t, games[2].IsRegularSeason())
}

func TestGetGameLog_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.GetGameLog(context.Background(), "1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGetGameLog_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"labels":[],"events":{},"seasonTypes":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.GetGameLog(context.Background(), "1", "")
	assert.ErrorIs(t, err, ErrEmptyGameLog)
}

func TestGetTeams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(teamsJSON))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/teams", time.Second)
	teams, err := c.GetTeams(context.Background(), 110)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	assert.Equal(t, 1, teams[0].ID)
	assert.Equal(t, "Hawks", teams[0].Name)
	assert.Equal(t, "Boston", teams[1].Location)
	assert.Equal(t, map[int]float64{1: 110, 2: 110}, TeamRatings(teams))
}

func TestLabelValues(t *testing.T) {
	got := labelValues([]string{"MIN", "FG", "PTS", "AST"}, []string{"30", "9-17", "22"})
	assert.Equal(t, map[string]float64{"MIN": 30, "PTS": 22}, got)
}
