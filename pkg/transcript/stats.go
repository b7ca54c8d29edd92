package transcript

import (
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/weaviate/tiktoken-go"
)

type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter counts tokens with the named encoding, e.g. cl100k_base.
func NewTiktokenCounter(encoding string) (TokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s encoding", encoding)
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

type SpeakerStats struct {
	Name       string `json:"name" yaml:"name"`
	AuthorType string `json:"author_type" yaml:"author_type"`
	Messages   int    `json:"messages" yaml:"messages"`
	Tokens     int    `json:"tokens" yaml:"tokens"`
	Characters int    `json:"characters" yaml:"characters"`
}

type Stats struct {
	Messages int            `json:"messages" yaml:"messages"`
	Tokens   int            `json:"tokens" yaml:"tokens"`
	Speakers []SpeakerStats `json:"speakers" yaml:"speakers"`
}

// ComputeStats aggregates message and token counts per speaker, busiest first.
func ComputeStats(t Transcript, counter TokenCounter) Stats {
	bySpeaker := map[string]*SpeakerStats{}
	var st Stats
	for _, m := range t.Messages {
		key := m.AuthorType + "\x00" + m.Speaker()
		sp, ok := bySpeaker[key]
		if !ok {
			sp = &SpeakerStats{Name: m.Speaker(), AuthorType: m.AuthorType}
			bySpeaker[key] = sp
		}
		tokens := 0
		if counter != nil {
			tokens = counter.Count(m.Content)
		}
		sp.Messages++
		sp.Tokens += tokens
		sp.Characters += utf8.RuneCountInString(m.Content)
		st.Messages++
		st.Tokens += tokens
	}
	for _, sp := range bySpeaker {
		st.Speakers = append(st.Speakers, *sp)
	}
	sort.Slice(st.Speakers, func(i, j int) bool {
		if st.Speakers[i].Tokens != st.Speakers[j].Tokens {
			return st.Speakers[i].Tokens > st.Speakers[j].Tokens
		}
		return st.Speakers[i].Name < st.Speakers[j].Name
	})
	return st
}
