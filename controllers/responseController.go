package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleVoteOnIssue toggles the user's upvote on an issue
func (ic *IssueController) HandleVoteOnIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	result, err := ic.ledger.ToggleUpvote(c.Request.Context(), issueID, actor.ID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	message := "Vote removed successfully"
	if result.Upvoted {
		message = "Vote cast successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  message,
		"upvoted":  result.Upvoted,
		"newCount": result.NewCount,
	})
}

// AddResponse posts a response; mentors' responses are marked as solutions
func (ic *IssueController) AddResponse(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content" binding:"max=5000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	isMentor, err := ic.resolver.IsMentor(ctx, actor.ID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	response, err := ic.ledger.AddResponse(ctx, issueID, actor.ID, input.Content, isMentor)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// GetResponses lists an issue's responses in ranked order
func (ic *IssueController) GetResponses(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}

	responses, err := ic.ledger.ListResponses(c.Request.Context(), issueID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses)
}

// AcceptSolution lets the reporter accept a mentor's response
func (ic *IssueController) AcceptSolution(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	responseID, ok := objectIDParam(c, "responseId", "response")
	if !ok {
		return
	}
	actor, ok := ic.actor(c)
	if !ok {
		return
	}

	response, err := ic.ledger.AcceptSolution(c.Request.Context(), issueID, responseID, actor.ID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}

	ic.logger.Info("solution accepted", "issue", issueID.Hex(), "response", responseID.Hex())
	c.JSON(http.StatusOK, response)
}

// LikeResponse bumps a response's like counter
func (ic *IssueController) LikeResponse(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id", "issue")
	if !ok {
		return
	}
	responseID, ok := objectIDParam(c, "responseId", "response")
	if !ok {
		return
	}

	response, err := ic.ledger.LikeResponse(c.Request.Context(), issueID, responseID)
	if err != nil {
		respondError(c, ic.logger, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
