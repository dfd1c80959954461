package alsa

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxCards is the number of card slots the kernel provides (SNDRV_CARDS).
const maxCards = 32

// SoundCard is a sound card registered with the kernel.
type SoundCard struct {
	Index int
	ID    string
	Name  string
}

// String returns a human-readable representation of the SoundCard.
func (c SoundCard) String() string {
	return fmt.Sprintf("Card %d: %s (%s)", c.Index, c.ID, c.Name)
}

var cardRegex = regexp.MustCompile(`^\s*(\d+)\s+\[\s*([^]]*?)\s*\]:\s*(.*)`)

// Cards lists the sound cards found in /proc/asound/cards, ordered by index.
func Cards() ([]SoundCard, error) {
	cardsFile := "/proc/asound/cards"

	content, err := os.ReadFile(cardsFile)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", cardsFile, err)
	}

	return parseCards(string(content)), nil
}

func parseCards(content string) []SoundCard {
	var cards []SoundCard

	for _, line := range strings.Split(content, "\n") {
		matches := cardRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}

		index, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		cards = append(cards, SoundCard{
			Index: index,
			ID:    strings.TrimSpace(matches[2]),
			Name:  strings.TrimSpace(matches[3]),
		})
	}

	sort.Slice(cards, func(i, j int) bool { return cards[i].Index < cards[j].Index })

	return cards
}

// CardNext returns the index of the first card after card, or -1 when there is none.
// Pass -1 to get the first card. Without procfs the control device nodes are probed instead.
func CardNext(card int) (int, error) {
	cards, err := Cards()
	if err == nil {
		for _, c := range cards {
			if c.Index > card {
				return c.Index, nil
			}
		}

		return -1, nil
	}

	for next := card + 1; next < maxCards; next++ {
		_, statErr := os.Stat(fmt.Sprintf("/dev/snd/controlC%d", next))
		if statErr == nil {
			return next, nil
		}

		if !errors.Is(statErr, fs.ErrNotExist) {
			return -1, fmt.Errorf("probing card %d failed: %w", next, statErr)
		}
	}

	return -1, nil
}
