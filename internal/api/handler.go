package api

import (
	"context"
	"fmt"
	"net/http"

	"cutx/catalog/internal/domain"
	"cutx/catalog/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Catalog is what the handlers need from the catalog service.
type Catalog interface {
	ListCatalogues(ctx context.Context) ([]domain.Catalogue, error)
	CategoryTree(ctx context.Context, slug string) ([]*domain.CategoryNode, error)
	ListPanels(ctx context.Context, filter domain.PanelFilter) (*service.PanelPage, error)
	SearchPanels(ctx context.Context, raw string, page, pageSize int) (*service.SearchResult, error)
	GetPanel(ctx context.Context, id uuid.UUID) (*domain.Panel, error)
	GetPanelByReference(ctx context.Context, slug, reference string) (*domain.Panel, error)
	UpdatePanel(ctx context.Context, id uuid.UUID, update service.PanelUpdate) (*domain.Panel, error)
	DeactivatePanel(ctx context.Context, id uuid.UUID) error
}

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	catalog Catalog
	db      Pinger
}

func NewHandler(catalog Catalog, db Pinger) *Handler {
	return &Handler{catalog: catalog, db: db}
}

func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "database unreachable")
			return
		}
	}
	success(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

func (h *Handler) ListCatalogues(c *gin.Context) {
	catalogues, err := h.catalog.ListCatalogues(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, catalogues, nil)
}

func (h *Handler) CategoryTree(c *gin.Context) {
	tree, err := h.catalog.CategoryTree(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, tree, nil)
}

func (h *Handler) ListPanels(c *gin.Context) {
	var query PanelQuery
	if !bindQuery(c, &query) {
		return
	}
	filter, err := query.Filter()
	if err != nil {
		handleError(c, err)
		return
	}

	page, err := h.catalog.ListPanels(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, page.Panels, NewMeta(page.Total, page.Page, page.PageSize))
}

func (h *Handler) SearchPanels(c *gin.Context) {
	var query SearchQuery
	if !bindQuery(c, &query) {
		return
	}

	result, err := h.catalog.SearchPanels(c.Request.Context(), query.Q, query.Page, query.PageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	meta := NewMeta(result.Total, result.Page, result.PageSize)
	meta.Query = gin.H{"parsed": result.Query, "canonical": result.Query.String()}
	success(c, http.StatusOK, result.Panels, meta)
}

func (h *Handler) GetPanel(c *gin.Context) {
	id, ok := panelID(c)
	if !ok {
		return
	}
	panel, err := h.catalog.GetPanel(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, panelView(panel), nil)
}

func (h *Handler) GetPanelByReference(c *gin.Context) {
	panel, err := h.catalog.GetPanelByReference(c.Request.Context(), c.Param("slug"), c.Param("reference"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, panelView(panel), nil)
}

func (h *Handler) UpdatePanel(c *gin.Context) {
	id, ok := panelID(c)
	if !ok {
		return
	}

	var req UpdatePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	update, err := req.Update()
	if err != nil {
		handleError(c, err)
		return
	}

	panel, err := h.catalog.UpdatePanel(c.Request.Context(), id, update)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, panelView(panel), nil)
}

func (h *Handler) DeactivatePanel(c *gin.Context) {
	id, ok := panelID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeactivatePanel(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PanelView adds the derived sheet price to a panel.
type PanelView struct {
	*domain.Panel
	AreaM2     string `json:"area_m2,omitempty"`
	SheetPrice string `json:"sheet_price,omitempty"`
}

func panelView(p *domain.Panel) PanelView {
	view := PanelView{Panel: p}
	if area := p.AreaM2(); !area.IsZero() {
		view.AreaM2 = area.StringFixed(3)
	}
	if price := p.SheetPrice(); price != nil {
		view.SheetPrice = price.StringFixed(2)
	}
	return view
}

func panelID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("invalid panel id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		bindFailed(c, err)
		return false
	}
	return true
}

func bindFailed(c *gin.Context, err error) {
	details := validationDetails(err)
	if details == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Error: &ErrorInfo{
			Code:      ErrCodeValidation,
			Message:   "Request validation failed",
			RequestID: c.GetString(RequestIDKey),
			Details:   details,
		},
	})
}
