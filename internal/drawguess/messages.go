package drawguess

// PhaseSelect announces who is choosing a word.
type PhaseSelect struct {
	Drawer  string `json:"drawer"`
	Timeout int    `json:"timeout"`
}

// YourSelection offers the drawer its options.
type YourSelection struct {
	Words []string `json:"words"`
}

// PhaseDraw starts, or for late joiners resumes, a drawing phase.
type PhaseDraw struct {
	Time   int    `json:"time"`
	Length int    `json:"length"`
	Mask   string `json:"mask"`
}

// CorrectGuess tells a guesser how much it earned.
type CorrectGuess struct {
	Score int `json:"score"`
}

// ChatLine is a relayed chat message.
type ChatLine struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

// PhaseEnd reveals the answer of a finished round.
type PhaseEnd struct {
	Reason string `json:"reason"`
	Answer string `json:"answer"`
}

// Standing is one scoreboard row.
type Standing struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	IsDrawer bool   `json:"is_drawer"`
}
