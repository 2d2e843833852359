// Package catalog holds the static reference data of the service: the
// specialists a user can chat with and the educational articles.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/search"
)

//go:embed catalog.yaml
var embedded []byte

// Catalog is immutable after Load.
type Catalog struct {
	specialists []domain.Specialist
	articles    []domain.Article
	byID        map[string]domain.Specialist
}

type document struct {
	Specialists []domain.Specialist `yaml:"specialists"`
	Articles    []domain.Article    `yaml:"articles"`
}

// Default returns the embedded catalog. It panics if the embedded document
// is invalid, which only a broken build can cause.
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a catalog document and checks ids are present and unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]domain.Specialist, len(doc.Specialists))}
	for _, s := range doc.Specialists {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: specialist %q without id", s.Name)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate specialist %s", s.ID)
		}
		c.byID[s.ID] = s
		c.specialists = append(c.specialists, s)
	}
	seen := map[int]bool{}
	for _, a := range doc.Articles {
		if seen[a.ID] {
			return nil, fmt.Errorf("catalog: duplicate article %d", a.ID)
		}
		seen[a.ID] = true
		c.articles = append(c.articles, a)
	}
	sort.Slice(c.articles, func(i, j int) bool { return c.articles[i].ID < c.articles[j].ID })
	return c, nil
}

// Specialists returns all specialists in catalog order.
func (c *Catalog) Specialists() []domain.Specialist {
	return append([]domain.Specialist(nil), c.specialists...)
}

// Specialist looks up a specialist by id.
func (c *Catalog) Specialist(id string) (domain.Specialist, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Articles returns all articles ordered by id.
func (c *Catalog) Articles() []domain.Article {
	return append([]domain.Article(nil), c.articles...)
}

// Article looks up an article by id.
func (c *Catalog) Article(id int) (domain.Article, bool) {
	for _, a := range c.articles {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Article{}, false
}

// ArticleIndex builds a search index over the articles. Each article
// contributes its summary and the paragraphs of its HTML content. Portuguese
// stop words are dropped unless opts override them.
func (c *Catalog) ArticleIndex(opts ...search.Option) search.Index {
	opts = append([]search.Option{search.WithStopwords(search.PortugueseStopwords)}, opts...)
	docs := make([]search.Document, 0, len(c.articles))
	for _, a := range c.articles {
		paras := append([]string{a.Summary}, search.Paragraphs(a.Content)...)
		docs = append(docs, search.Document{ID: a.ID, Title: a.Title, Paragraphs: paras})
	}
	return search.NewIndex(docs, opts...)
}
