package routes

import (
	"civicsync/controllers"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. createLimit guards issue creation.
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, auth, createLimit gin.HandlerFunc) {
	r.GET("/api/issues", ic.GetAllIssues)
	r.GET("/api/issues/recent", ic.RecentIssues)
	r.GET("/api/issues/analytics", ic.GetIssueAnalytics)

	issue := r.Group("/api/issue", auth)
	{
		issue.POST("/create", createLimit, ic.CreateIssue)
		issue.GET("/mine", ic.GetIssuesByUser)
		issue.GET("/:id", ic.GetIssue)
		issue.PATCH("/:id", ic.UpdateIssue)
		issue.GET("/:id/status", ic.GetIssueStatus)
		issue.POST("/:id/claim", ic.ClaimIssue)
		issue.PATCH("/:id/status", ic.UpdateIssueStatus)
		issue.PATCH("/:id/priority", ic.UpdateIssuePriority)
		issue.POST("/:id/upvote", ic.HandleVoteOnIssue)
		issue.GET("/:id/responses", ic.GetResponses)
		issue.POST("/:id/responses", ic.AddResponse)
		issue.POST("/:id/responses/:responseId/accept", ic.AcceptSolution)
		issue.POST("/:id/responses/:responseId/like", ic.LikeResponse)
	}
}
