package controllers

import (
	"net/http"
	"sync"

	"civicsync/models"
	"civicsync/store"

	"github.com/gin-gonic/gin"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

// upvoteSampleSize is how many recent issues feed the upvote statistics.
const upvoteSampleSize = 100

// countIssues returns the number of issues matching filter.
func (ic *IssueController) countIssues(c *gin.Context, filter store.IssueFilter) (int64, error) {
	filter.Limit = 1
	_, total, err := ic.engine.ListIssues(c.Request.Context(), filter)
	return total, err
}

// GetIssueAnalytics returns analytical data about issues
func (ic *IssueController) GetIssueAnalytics(c *gin.Context) {
	statuses := []models.IssueStatus{
		models.StatusOpen, models.StatusAssigned, models.StatusInProgress,
		models.StatusResolved, models.StatusClosed,
	}

	var (
		mu         sync.Mutex
		byCategory = make([]gin.H, len(models.Categories))
		byStatus   = make(map[models.IssueStatus]int64, len(statuses))
		topVoted   []*models.Issue
		sample     []*models.Issue
		total      int64
	)

	g := new(errgroup.Group)
	g.SetLimit(4)

	for i, category := range models.Categories {
		i, category := i, category
		g.Go(func() error {
			n, err := ic.countIssues(c, store.IssueFilter{Category: category})
			if err != nil {
				return err
			}
			byCategory[i] = gin.H{"name": category, "value": n}
			return nil
		})
	}
	for _, status := range statuses {
		status := status
		g.Go(func() error {
			n, err := ic.countIssues(c, store.IssueFilter{Status: status})
			if err != nil {
				return err
			}
			mu.Lock()
			byStatus[status] = n
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		issues, n, err := ic.engine.ListIssues(c.Request.Context(), store.IssueFilter{Sort: store.SortUpvotes, Limit: 5})
		if err != nil {
			return err
		}
		mu.Lock()
		topVoted, total = issues, n
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		issues, _, err := ic.engine.ListIssues(c.Request.Context(), store.IssueFilter{Sort: store.SortNewest, Limit: upvoteSampleSize})
		if err != nil {
			return err
		}
		mu.Lock()
		sample = issues
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		respondError(c, ic.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": byCategory,
		"issuesByStatus":   byStatus,
		"topVotedIssues":   topVoted,
		"totalIssues":      total,
		"openIssues":       byStatus[models.StatusOpen] + byStatus[models.StatusAssigned] + byStatus[models.StatusInProgress],
		"upvotes":          upvoteStats(sample),
	})
}

// upvoteStats summarises upvote counts over issues.
func upvoteStats(issues []*models.Issue) gin.H {
	data := make(stats.Float64Data, 0, len(issues))
	var sum int64
	for _, issue := range issues {
		data = append(data, float64(issue.UpvoteCount))
		sum += issue.UpvoteCount
	}

	mean, _ := data.Mean()
	median, _ := data.Median()
	return gin.H{
		"sampled": len(data),
		"total":   sum,
		"mean":    mean,
		"median":  median,
	}
}
