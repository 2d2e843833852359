// Catalog HTTP handlers: specialists and educational articles.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/search"
	"github.com/tbourn/go-trademark-backend/internal/utils"
)

const (
	defaultSearchK = 5
	maxSearchK     = 20
)

// ArticleList is the article listing; Results is set for searches.
type ArticleList struct {
	Query    string           `json:"query,omitempty"`
	Articles []domain.Article `json:"articles,omitempty"`
	Results  []search.Result  `json:"results,omitempty"`
}

// ListSpecialists godoc
// @ID          listSpecialists
// @Summary     List specialists
// @Tags        Catalog
// @Produce     json
// @Success     200  {array}  domain.Specialist
// @Router      /specialists [get]
func (h *Handlers) ListSpecialists(c *gin.Context) {
	ok(c, http.StatusOK, h.catalog.Specialists())
}

// ListArticles godoc
// @ID          listArticles
// @Summary     List or search articles
// @Description Without q, returns all articles. With q, returns the best matching articles with a snippet each.
// @Tags        Catalog
// @Produce     json
// @Param       q  query  string  false "Search text"
// @Param       k  query  int     false "Max results (1-20, default 5)"
// @Success     200  {object}  handlers.ArticleList
// @Router      /articles [get]
func (h *Handlers) ListArticles(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" || h.articles == nil {
		ok(c, http.StatusOK, ArticleList{Articles: h.catalog.Articles()})
		return
	}
	res := h.articles.TopDocs(q, utils.ResultLimit(c.Query("k"), defaultSearchK, maxSearchK))
	if res == nil {
		res = []search.Result{}
	}
	ok(c, http.StatusOK, ArticleList{Query: q, Results: res})
}

// GetArticle godoc
// @ID          getArticle
// @Summary     Article detail
// @Tags        Catalog
// @Produce     json
// @Param       id  path  int  true  "Article ID"
// @Success     200  {object}  domain.Article
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /articles/{id} [get]
func (h *Handlers) GetArticle(c *gin.Context) {
	a, found := h.catalog.Article(utils.AtoiDefault(c.Param("id"), -1))
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
		return
	}
	ok(c, http.StatusOK, a)
}
