package common

// Team is a recognized regular-season team.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Teams lists the regular-season teams keyed by provider id.
var Teams = map[int]Team{
	1:  {1, "Atlanta Hawks", "Atlanta"},
	2:  {2, "Boston Celtics", "Boston"},
	3:  {3, "Brooklyn Nets", "Brooklyn"},
	4:  {4, "Charlotte Hornets", "Charlotte"},
	5:  {5, "Chicago Bulls", "Chicago"},
	6:  {6, "Cleveland Cavaliers", "Cleveland"},
	7:  {7, "Dallas Mavericks", "Dallas"},
	8:  {8, "Denver Nuggets", "Denver"},
	9:  {9, "Detroit Pistons", "Detroit"},
	10: {10, "Golden State Warriors", "Golden State"},
	11: {11, "Houston Rockets", "Houston"},
	12: {12, "Indiana Pacers", "Indiana"},
	13: {13, "Los Angeles Clippers", "Los Angeles"},
	14: {14, "Los Angeles Lakers", "Los Angeles"},
	15: {15, "Memphis Grizzlies", "Memphis"},
	16: {16, "Miami Heat", "Miami"},
	17: {17, "Milwaukee Bucks", "Milwaukee"},
	18: {18, "Minnesota Timberwolves", "Minnesota"},
	19: {19, "New Orleans Pelicans", "New Orleans"},
	20: {20, "New York Knicks", "New York"},
	21: {21, "Oklahoma City Thunder", "Oklahoma City"},
	22: {22, "Orlando Magic", "Orlando"},
	23: {23, "Philadelphia 76ers", "Philadelphia"},
	24: {24, "Phoenix Suns", "Phoenix"},
	25: {25, "Portland Trail Blazers", "Portland"},
	26: {26, "Sacramento Kings", "Sacramento"},
	27: {27, "San Antonio Spurs", "San Antonio"},
	28: {28, "Toronto Raptors", "Toronto"},
	29: {29, "Utah Jazz", "Utah"},
	30: {30, "Washington Wizards", "Washington"},
}

// DefaultAthletes maps tracked athlete display names to provider athlete ids.
var DefaultAthletes = map[string]string{
	"Nikola Jokic":            "3112335",
	"Luka Doncic":             "3945274",
	"Giannis Antetokounmpo":   "3032977",
	"Shai Gilgeous-Alexander": "4278053",
	"Jayson Tatum":            "4065648",
	"LeBron James":            "1966",
	"Kevin Durant":            "3202",
	"Stephen Curry":           "3975",
	"Damian Lillard":          "6606",
	"Jimmy Butler":            "6430",
}
