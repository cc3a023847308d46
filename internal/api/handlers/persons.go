package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/service"
	"go.uber.org/zap"
)

// PersonHandler handles person, visitor, credential, and vehicle operations
type PersonHandler struct {
	persons *service.PersonService
	logger  *zap.Logger
}

// NewPersonHandler creates a new person handler
func NewPersonHandler(persons *service.PersonService, logger *zap.Logger) *PersonHandler {
	return &PersonHandler{
		persons: persons,
		logger:  logger,
	}
}

// actorID returns the authenticated admin user id set by the auth middleware.
func actorID(c *gin.Context) string {
	id, _ := c.Get("user_id")
	s, _ := id.(string)
	return s
}

// identityError maps store errors to HTTP status codes.
func identityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, identity.ErrDuplicateCredential), errors.Is(err, identity.ErrCredentialCollision):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CreatePersonRequest represents a request to create a person or visitor
type CreatePersonRequest struct {
	Name       string              `json:"name" binding:"required"`
	Category   string              `json:"category"`
	Unit       string              `json:"unit"`
	Document   string              `json:"document"`
	Rules      []models.AccessRule `json:"rules"`
	ValidFrom  *time.Time          `json:"valid_from"`
	ValidUntil *time.Time          `json:"valid_until"`
}

func (r *CreatePersonRequest) toService(actor string) *service.CreatePersonRequest {
	return &service.CreatePersonRequest{
		Name:       r.Name,
		Category:   models.PersonCategory(r.Category),
		Unit:       r.Unit,
		Document:   r.Document,
		Rules:      r.Rules,
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		ActorID:    actor,
	}
}

// CreatePerson creates a new person
// @Summary Create person
// @Router /api/v1/persons [post]
func (h *PersonHandler) CreatePerson(c *gin.Context) {
	var req CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.persons.CreatePerson(req.toService(actorID(c)))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// CreateVisitor creates a visitor with a bounded validity window
// @Summary Create visitor
// @Router /api/v1/visitors [post]
func (h *PersonHandler) CreateVisitor(c *gin.Context) {
	var req CreatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ValidUntil == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid_until is required for visitors"})
		return
	}

	p, err := h.persons.CreateVisitor(req.toService(actorID(c)))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdatePersonRequest updates a person's descriptive fields
type UpdatePersonRequest struct {
	Name       string     `json:"name" binding:"required"`
	Unit       string     `json:"unit"`
	Document   string     `json:"document"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

// UpdatePerson updates a person's profile
// @Summary Update person
// @Router /api/v1/persons/{id} [put]
func (h *PersonHandler) UpdatePerson(c *gin.Context) {
	var req UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.persons.Update(c.Param("id"), &service.UpdatePersonRequest{
		Name:       req.Name,
		Unit:       req.Unit,
		Document:   req.Document,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		ActorID:    actorID(c),
	})
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetPerson retrieves a person with credentials
// @Summary Get person
// @Router /api/v1/persons/{id} [get]
func (h *PersonHandler) GetPerson(c *gin.Context) {
	p, err := h.persons.GetPerson(c.Param("id"))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListPersons returns a page of persons
// @Summary List persons
// @Router /api/v1/persons [get]
func (h *PersonHandler) ListPersons(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	persons, err := h.persons.ListPersons(limit, offset)
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"persons": persons})
}

// BlockRequest carries the operator's reason for a block
type BlockRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// BlockPerson blocks a person everywhere
// @Summary Block person
// @Router /api/v1/persons/{id}/block [put]
func (h *PersonHandler) BlockPerson(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.persons.Block(c.Param("id"), req.Reason, actorID(c)); err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "person blocked"})
}

// UnblockPerson lifts a block
// @Summary Unblock person
// @Router /api/v1/persons/{id}/unblock [put]
func (h *PersonHandler) UnblockPerson(c *gin.Context) {
	if err := h.persons.Unblock(c.Param("id"), actorID(c)); err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "person unblocked"})
}

// UpdateRulesRequest replaces a person's access rules
type UpdateRulesRequest struct {
	Rules []models.AccessRule `json:"rules" binding:"required"`
}

// UpdateRules replaces a person's access rules
// @Summary Update access rules
// @Router /api/v1/persons/{id}/rules [put]
func (h *PersonHandler) UpdateRules(c *gin.Context) {
	var req UpdateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.persons.UpdateRules(c.Param("id"), req.Rules, actorID(c)); err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rules updated"})
}

// AddCredentialRequest enrolls a credential
type AddCredentialRequest struct {
	Type  models.CredentialType `json:"type" binding:"required"`
	Value string                `json:"value" binding:"required"`
}

// AddCredential enrolls a credential for a person
// @Summary Add credential
// @Router /api/v1/persons/{id}/credentials [post]
func (h *PersonHandler) AddCredential(c *gin.Context) {
	var req AddCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported credential type"})
		return
	}

	cred, err := h.persons.AddCredential(c.Param("id"), req.Type, req.Value, actorID(c))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

// RemoveCredential revokes a credential
// @Summary Remove credential
// @Router /api/v1/persons/{id}/credentials/{credentialId} [delete]
func (h *PersonHandler) RemoveCredential(c *gin.Context) {
	if err := h.persons.RemoveCredential(c.Param("id"), c.Param("credentialId"), actorID(c)); err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "credential revoked"})
}

// CheckoutVisitor ends a visitor's validity window now
// @Summary Checkout visitor
// @Router /api/v1/visitors/{id}/checkout [put]
func (h *PersonHandler) CheckoutVisitor(c *gin.Context) {
	p, err := h.persons.Checkout(c.Param("id"), actorID(c))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AddVehicleRequest registers a vehicle for a person
type AddVehicleRequest struct {
	Plate      string `json:"plate" binding:"required"`
	Authorized *bool  `json:"authorized"`
}

// AddVehicle registers a vehicle and its plate credential
// @Summary Add vehicle
// @Router /api/v1/persons/{id}/vehicles [post]
func (h *PersonHandler) AddVehicle(c *gin.Context) {
	var req AddVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authorized := true
	if req.Authorized != nil {
		authorized = *req.Authorized
	}

	v, err := h.persons.AddVehicle(c.Param("id"), req.Plate, authorized, actorID(c))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// ListVehicles returns a person's vehicles
// @Summary List vehicles
// @Router /api/v1/persons/{id}/vehicles [get]
func (h *PersonHandler) ListVehicles(c *gin.Context) {
	vehicles, err := h.persons.ListVehicles(c.Param("id"))
	if err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

// SetVehicleAuthorizedRequest flips a vehicle's authorized flag
type SetVehicleAuthorizedRequest struct {
	Authorized *bool `json:"authorized" binding:"required"`
}

// SetVehicleAuthorized flips a vehicle's authorized flag
// @Summary Authorize or deauthorize vehicle
// @Router /api/v1/vehicles/{plate}/authorized [put]
func (h *PersonHandler) SetVehicleAuthorized(c *gin.Context) {
	var req SetVehicleAuthorizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.persons.SetVehicleAuthorized(c.Param("plate"), *req.Authorized, actorID(c)); err != nil {
		identityError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vehicle updated"})
}
