package services

import (
	"context"
	"sort"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	topOpportunityCount = 5
	chartPointCount     = 10
)

// CategoryStats summarizes one IPO category
type CategoryStats struct {
	Category          Resource `json:"category"`
	Total             int      `json:"total"`
	Active            int      `json:"active"`
	Upcoming          int      `json:"upcoming"`
	AverageGMP        float64  `json:"avgGmp"`
	HighestGMP        float64  `json:"highestGmp"`
	HighestGMPCompany string   `json:"highestGmpCompany"`
}

// Opportunity is an active IPO ranked by GMP
type Opportunity struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	GMP         float64          `json:"gmp"`
	Price       float64          `json:"price"`
	GainPercent float64          `json:"gainPercent"`
	Type        models.IPOType   `json:"type"`
	Status      models.IPOStatus `json:"status"`
}

// ChartPoint is the expected gain of one IPO, GMP times lot size
type ChartPoint struct {
	Name string  `json:"name"`
	Gain float64 `json:"gain"`
}

// DashboardStats is the overview screen
type DashboardStats struct {
	TotalIPOs         int             `json:"totalIPOs"`
	ActiveIPOs        int             `json:"activeIPOs"`
	UpcomingIPOs      int             `json:"upcomingIPOs"`
	AverageGMP        float64         `json:"avgGMP"`
	HighestGMP        float64         `json:"highestGMP"`
	HighestGMPCompany string          `json:"highestGMPCompany"`
	Categories        []CategoryStats `json:"categories"`
	TopOpportunities  []Opportunity   `json:"topOpportunities"`
	ChartData         []ChartPoint    `json:"chartData"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

// DashboardService aggregates the three IPO categories into overview figures
type DashboardService struct {
	ipos   *CachedIPOService
	now    func() time.Time
	logger *logrus.Entry
}

// NewDashboardService creates a dashboard service reading through the IPO cache
func NewDashboardService(ipos *CachedIPOService) *DashboardService {
	return &DashboardService{
		ipos:   ipos,
		now:    time.Now,
		logger: logrus.WithField("component", "DashboardService"),
	}
}

// Stats loads mainboard, SME and listed IPOs concurrently and summarizes them.
// Any category failing to load fails the whole call.
func (d *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	now := d.now()
	rowsByCategory := make([][]models.IPOTableRow, len(IPOCategories))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, category := range IPOCategories {
		group.Go(func() error {
			page, err := d.ipos.FetchRecords(groupCtx, category, TableQuery{})
			if err != nil {
				return err
			}
			normalizer := d.ipos.Service().Normalizer()
			rows := make([]models.IPOTableRow, 0, len(page.Records))
			for _, raw := range page.Records {
				rows = append(rows, normalizer.ToTableRow(raw, DefaultIPOType(category), now))
			}
			rowsByCategory[i] = rows
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		d.logger.WithError(err).Error("Failed to load dashboard data")
		return DashboardStats{}, err
	}

	stats := ComputeDashboardStats(IPOCategories, rowsByCategory)
	stats.GeneratedAt = now.UTC()
	return stats, nil
}

// ComputeDashboardStats summarizes rows grouped by category. Categories are
// combined in the order given, which also decides the chart's first ten IPOs.
func ComputeDashboardStats(categories []Resource, rowsByCategory [][]models.IPOTableRow) DashboardStats {
	stats := DashboardStats{
		Categories:       make([]CategoryStats, 0, len(categories)),
		TopOpportunities: []Opportunity{},
		ChartData:        []ChartPoint{},
	}

	var all []models.IPOTableRow
	for i, category := range categories {
		var rows []models.IPOTableRow
		if i < len(rowsByCategory) {
			rows = rowsByCategory[i]
		}
		summary := summarize(rows)
		summary.Category = category
		stats.Categories = append(stats.Categories, summary)
		all = append(all, rows...)
	}

	overall := summarize(all)
	stats.TotalIPOs = overall.Total
	stats.ActiveIPOs = overall.Active
	stats.UpcomingIPOs = overall.Upcoming
	stats.AverageGMP = overall.AverageGMP
	stats.HighestGMP = overall.HighestGMP
	stats.HighestGMPCompany = overall.HighestGMPCompany

	for _, row := range all {
		if !isActive(row.Status) || row.GMP == 0 || row.LotPrice == 0 {
			continue
		}
		stats.TopOpportunities = append(stats.TopOpportunities, Opportunity{
			ID:          row.ID,
			Name:        row.CompanyName,
			GMP:         row.GMP,
			Price:       row.LotPrice,
			GainPercent: row.GMP / row.LotPrice * 100,
			Type:        row.IPOType,
			Status:      row.Status,
		})
	}
	sort.SliceStable(stats.TopOpportunities, func(i, j int) bool {
		return stats.TopOpportunities[i].GMP > stats.TopOpportunities[j].GMP
	})
	if len(stats.TopOpportunities) > topOpportunityCount {
		stats.TopOpportunities = stats.TopOpportunities[:topOpportunityCount]
	}

	for i, row := range all {
		if i == chartPointCount {
			break
		}
		stats.ChartData = append(stats.ChartData, ChartPoint{Name: row.CompanyName, Gain: row.GMP * float64(row.LotSize)})
	}
	return stats
}

// isActive reports whether an IPO is open or about to open
func isActive(status models.IPOStatus) bool {
	return status == models.StatusOpen || status == models.StatusUpcoming
}

// summarize counts rows and averages GMP over active IPOs that have one
func summarize(rows []models.IPOTableRow) CategoryStats {
	var summary CategoryStats
	var gmpTotal float64
	var gmpCount int

	summary.Total = len(rows)
	for _, row := range rows {
		if !isActive(row.Status) {
			continue
		}
		summary.Active++
		if row.Status == models.StatusUpcoming {
			summary.Upcoming++
		}
		if row.GMP == 0 {
			continue
		}
		gmpTotal += row.GMP
		gmpCount++
		if summary.HighestGMPCompany == "" || row.GMP > summary.HighestGMP {
			summary.HighestGMP = row.GMP
			summary.HighestGMPCompany = row.CompanyName
		}
	}
	if gmpCount > 0 {
		summary.AverageGMP = gmpTotal / float64(gmpCount)
	}
	return summary
}
