package id

import (
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idLength = 21

// Prefixes identify the entity kind at a glance in logs and URLs
const (
	PromptPrefix  = "ap"
	HistoryPrefix = "aph"
	RequestPrefix = "areq"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(idLength)
	if err != nil {
		// crypto/rand failure; nanoseconds keep the ID unique enough to insert
		return prefix + "_t" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return prefix + "_" + id
}

func (g *Generator) GeneratePromptID() string {
	return g.generate(PromptPrefix)
}

func (g *Generator) GenerateHistoryID() string {
	return g.generate(HistoryPrefix)
}

func (g *Generator) GenerateRequestID() string {
	return g.generate(RequestPrefix)
}
