package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"civicsync/engagement"
	"civicsync/identity"
	"civicsync/lifecycle"
	"civicsync/mentor"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// recentIssuesLimit is the size of the map feed.
const recentIssuesLimit = 19

// IssueController serves the issue lifecycle and engagement endpoints.
type IssueController struct {
	engine   *lifecycle.Engine
	ledger   *engagement.Ledger
	resolver *mentor.Resolver
	logger   *slog.Logger
}

// NewIssueController creates an IssueController with injected dependencies.
func NewIssueController(engine *lifecycle.Engine, ledger *engagement.Ledger, resolver *mentor.Resolver, logger *slog.Logger) *IssueController {
	return &IssueController{engine: engine, ledger: ledger, resolver: resolver, logger: logger}
}

func (ic *IssueController) actor(c *gin.Context) (identity.Actor, bool) {
	actor, ok := middlewares.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return actor, ok
}

func objectIDParam(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var input struct {
		Title       string           `json:"title" binding:"required,max=200"`
		Description string           `json:"description" binding:"required,max=1000"`
		Category    string           `json:"category" binding:"required"`
		Priority    string           `json:"priority,omitempty"`
		Location    *models.Location `json:"location,omitempty"`
		Images      []string         `json:"images,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := ic.engine.Create(c.Request.Context(), actor.ID, lifecycle.NewIssue{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Priority:    models.IssuePriority(input.Priority),
		Location:    input.Location,
		Images:      input.Images,
	})
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	ic.logger.Info("issue created", "issue", issue.ID.Hex(), "reporter", actor.ID.Hex())
	c.JSON(http.StatusCreated, issue)
}

// issueFilterFromQuery reads the list filters shared by the list endpoints.
func issueFilterFromQuery(c *gin.Context) (store.IssueFilter, int, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := store.IssueFilter{
		Search: c.Query("search"),
		Sort:   store.IssueSort(c.DefaultQuery("sort", string(store.SortNewest))),
		Skip:   (page - 1) * limit,
		Limit:  limit,
	}

	if category := c.Query("category"); category != "" && category != "all" {
		filter.Category = models.IssueCategory(category)
		if !filter.Category.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return filter, 0, false
		}
	}
	if status := c.Query("status"); status != "" && status != "all" {
		filter.Status = models.IssueStatus(status)
		if !filter.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return filter, 0, false
		}
	}
	return filter, page, true
}

// GetAllIssues handles retrieving issues with filtering and pagination
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	filter, page, ok := issueFilterFromQuery(c)
	if !ok {
		return
	}

	issues, total, err := ic.engine.ListIssues(c.Request.Context(), filter)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	c.JSON(http.StatusOK, gin.H{
		"issues":      issues,
		"totalIssues": total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetIssuesByUser retrieves the issues reported by the authenticated user
func (ic *IssueController) GetIssuesByUser(c *gin.Context) {
	actor, ok := ic.actor(c)
	if !ok {
		return
	}
	filter, _, ok := issueFilterFromQuery(c)
	if !ok {
		return
	}
	filter.ReporterID = &actor.ID

	issues, _, err := ic.engine.ListIssues(c.Request.Context(), filter)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

// GetIssue retrieves an issue with its ranked responses and whether the
// caller has upvoted it.
func (ic *IssueController) GetIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var (
		issue        *models.Issue
		responses    []*models.Response
		userHasVoted bool
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		issue, err = ic.engine.GetIssue(ctx, issueID)
		return err
	})
	g.Go(func() error {
		var err error
		responses, err = ic.ledger.ListResponses(ctx, issueID)
		return err
	})
	g.Go(func() error {
		var err error
		userHasVoted, err = ic.ledger.HasUpvoted(ctx, issueID, actor.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, ic.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":        issue,
		"responses":    responses,
		"userHasVoted": userHasVoted,
	})
}

// GetIssueStatus returns only the status of an issue
func (ic *IssueController) GetIssueStatus(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}

	status, err := ic.engine.GetStatus(c.Request.Context(), issueID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": issueID, "status": status})
}

// RecentIssues returns the most recent issues that have a location
func (ic *IssueController) RecentIssues(c *gin.Context) {
	issues, _, err := ic.engine.ListIssues(c.Request.Context(), store.IssueFilter{
		HasLocation: true,
		Sort:        store.SortNewest,
		Limit:       recentIssuesLimit,
	})
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	type IssueResponse struct {
		ID        string               `json:"id"`
		Title     string               `json:"title"`
		Latitude  float64              `json:"latitude"`
		Longitude float64              `json:"longitude"`
		Location  string               `json:"location"`
		Category  models.IssueCategory `json:"category,omitempty"`
		Status    models.IssueStatus   `json:"status"`
	}

	response := make([]IssueResponse, 0, len(issues))
	for _, issue := range issues {
		if issue.Location == nil {
			continue
		}
		response = append(response, IssueResponse{
			ID:        issue.ID.Hex(),
			Title:     issue.Title,
			Latitude:  issue.Location.Latitude,
			Longitude: issue.Location.Longitude,
			Location:  issue.Location.Address,
			Category:  issue.Category,
			Status:    issue.Status,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ClaimIssue assigns the issue to the calling mentor
func (ic *IssueController) ClaimIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	issue, err := ic.engine.Claim(c.Request.Context(), issueID, actor.ID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	ic.logger.Info("issue claimed", "issue", issueID.Hex(), "mentor", actor.ID.Hex())
	c.JSON(http.StatusOK, issue)
}

// UpdateIssueStatus moves the issue along its lifecycle
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := ic.engine.AdvanceStatus(c.Request.Context(), issueID, actor, models.IssueStatus(input.Status))
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	ic.logger.Info("issue status changed", "issue", issueID.Hex(), "status", issue.Status, "actor", actor.ID.Hex())
	c.JSON(http.StatusOK, issue)
}

// UpdateIssue lets the reporter edit the details of an issue
func (ic *IssueController) UpdateIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var input struct {
		Title       *string          `json:"title,omitempty" binding:"omitempty,max=200"`
		Description *string          `json:"description,omitempty" binding:"omitempty,max=1000"`
		Category    *string          `json:"category,omitempty"`
		Location    *models.Location `json:"location,omitempty"`
		Images      []string         `json:"images,omitempty"`
		Status      *string          `json:"status,omitempty"`
		Priority    *string          `json:"priority,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Status != nil || input.Priority != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status and priority have their own endpoints"})
		return
	}

	patch := lifecycle.IssuePatch{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Images:      input.Images,
	}
	if input.Category != nil {
		category := models.IssueCategory(*input.Category)
		patch.Category = &category
	}

	issue, err := ic.engine.UpdateDetails(c.Request.Context(), issueID, actor, patch)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpdateIssuePriority changes the priority of an issue
func (ic *IssueController) UpdateIssuePriority(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var input struct {
		Priority string `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := ic.engine.UpdatePriority(c.Request.Context(), issueID, actor, models.IssuePriority(input.Priority))
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}
