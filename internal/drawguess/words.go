package drawguess

import (
	"math/rand/v2"
	"strings"
)

// Tier is a word difficulty.
type Tier string

const (
	TierEasy   Tier = "EASY"
	TierMedium Tier = "MEDIUM"
	TierHard   Tier = "HARD"
)

// Tiers is the order options are offered in.
var Tiers = []Tier{TierEasy, TierMedium, TierHard}

// WordPool holds the candidate words of every tier.
type WordPool map[Tier][]string

// DefaultWords is the built-in pool.
var DefaultWords = WordPool{
	TierEasy:   {"Cat", "Sun", "Cup", "Hat", "Ball", "Tree", "Book", "Fish", "Star", "Eye"},
	TierMedium: {"Apple", "Pizza", "Ghost", "Robot", "Smile", "House", "Chair", "Clock", "Phone", "Beach"},
	TierHard:   {"Dragon", "Guitar", "Planet", "Cactus", "Turtle", "Rocket", "Camera", "Spider", "Zombie", "Vampire"},
}

// options draws one word per tier, easiest first.
func (p WordPool) options(rng *rand.Rand) []string {
	out := make([]string, 0, len(Tiers))
	for _, t := range Tiers {
		words := p[t]
		out = append(out, words[rng.IntN(len(words))])
	}
	return out
}

// mask renders word with unrevealed letters as '_', space separated.
func mask(word string, revealed map[int]bool) string {
	runes := []rune(word)
	cells := make([]string, len(runes))
	for i, r := range runes {
		if r == ' ' || revealed[i] {
			cells[i] = string(r)
		} else {
			cells[i] = "_"
		}
	}
	return strings.Join(cells, " ")
}

// hintable returns the positions still hidden, or nil once half of the
// letters are showing.
func hintable(word string, revealed map[int]bool) []int {
	runes := []rune(word)
	letters := 0
	var hidden []int
	for i, r := range runes {
		if r == ' ' {
			continue
		}
		letters++
		if !revealed[i] {
			hidden = append(hidden, i)
		}
	}
	if len(revealed) >= letters/2 {
		return nil
	}
	return hidden
}
