package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finance-tracker/backend/internal/domain"
)

// InsightsUsecase turns a user's recent transaction history into a
// rule-based spending report.
type InsightsUsecase struct {
	repo domain.TransactionRepository
	now  func() time.Time
}

func NewInsightsUsecase(repo domain.TransactionRepository) *InsightsUsecase {
	return &InsightsUsecase{repo: repo, now: time.Now}
}

// WithClock replaces the usecase clock. Intended for tests.
func (u *InsightsUsecase) WithClock(now func() time.Time) *InsightsUsecase {
	u.now = now
	return u
}

type CategoryShare struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type InsightReport struct {
	HealthAssessment     string   `json:"healthAssessment"`
	Recommendations      []string `json:"recommendations"`
	SpendingPatterns     string   `json:"spendingPatterns"`
	SavingsOpportunities string   `json:"savingsOpportunities"`
	GoalSuggestions      string   `json:"goalSuggestions"`
	RiskLevel            string   `json:"riskLevel"`
	BudgetScore          int      `json:"budgetScore"`
	GeneratedAt          string   `json:"generatedAt"`
	Timeframe            string   `json:"timeframe"`
}

func (u *InsightsUsecase) Generate(userID uuid.UUID, periodDays int) (*InsightReport, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	now := u.now()
	since := now.Add(-time.Duration(periodDays) * 24 * time.Hour)

	transactions, err := u.repo.ListByUserSince(userID, since)
	if err != nil {
		return nil, err
	}

	report := buildReport(transactions, periodDays)
	report.GeneratedAt = now.UTC().Format(time.RFC3339)
	report.Timeframe = fmt.Sprintf("%d", periodDays)
	return report, nil
}

func buildReport(transactions []*domain.Transaction, periodDays int) *InsightReport {
	if len(transactions) == 0 {
		return &InsightReport{
			HealthAssessment: "No transactions found for this period. Start tracking your finances to get personalized insights!",
			Recommendations: []string{
				"Add your income and expense transactions to get started",
				"Set up regular transaction tracking habits",
			},
			SpendingPatterns:     "No spending patterns available yet",
			SavingsOpportunities: "Start tracking expenses to identify savings opportunities",
			GoalSuggestions:      "Begin with tracking your daily expenses",
			RiskLevel:            "unknown",
			BudgetScore:          0,
		}
	}

	var totalIncome, totalExpense float64
	spendingByCategory := map[string]float64{}
	for _, t := range transactions {
		switch t.Type {
		case domain.TransactionTypeCredit:
			totalIncome += t.Amount
		case domain.TransactionTypeDebit:
			totalExpense += t.Amount
			spendingByCategory[t.Category] += t.Amount
		}
	}
	netBalance := totalIncome - totalExpense

	savingsRate := 0.0
	if totalIncome > 0 {
		savingsRate = netBalance / totalIncome * 100
	}

	topCategories := rankCategories(spendingByCategory, totalExpense)

	report := &InsightReport{}
	report.HealthAssessment, report.RiskLevel, report.BudgetScore = assessHealth(netBalance, savingsRate)
	report.Recommendations = recommend(savingsRate, topCategories, len(transactions), periodDays)
	report.SpendingPatterns = describePatterns(topCategories)
	report.SavingsOpportunities = findSavings(topCategories)
	report.GoalSuggestions = suggestGoals(savingsRate)
	return report
}

func rankCategories(spending map[string]float64, totalExpense float64) []CategoryShare {
	shares := make([]CategoryShare, 0, len(spending))
	for name, amount := range spending {
		share := CategoryShare{Name: name, Amount: amount}
		if totalExpense > 0 {
			share.Percentage = amount / totalExpense * 100
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Amount > shares[j].Amount })
	return shares
}

func assessHealth(netBalance, savingsRate float64) (assessment, riskLevel string, budgetScore int) {
	switch {
	case netBalance < 0:
		return "Your expenses exceed your income this period. This requires immediate attention to avoid financial stress.", "high", 25
	case savingsRate < 5:
		return "You're maintaining a positive balance, but with very limited savings. Consider reducing discretionary spending.", "medium", 45
	case savingsRate < 15:
		return "You have a decent financial position but there's room for improvement in your savings rate.", "medium", 65
	case savingsRate < 25:
		return "Great job! You're maintaining healthy financial habits with good savings discipline.", "low", 85
	default:
		return "Excellent financial management! You're saving significantly and building strong financial security.", "low", 95
	}
}

func recommend(savingsRate float64, topCategories []CategoryShare, transactionCount, periodDays int) []string {
	var recommendations []string

	if savingsRate < 10 {
		recommendations = append(recommendations, "Aim to save at least 10-15% of your income for financial security")
	}

	if len(topCategories) > 0 {
		top := topCategories[0]
		if top.Percentage > 40 {
			recommendations = append(recommendations, fmt.Sprintf(
				"Your %s spending (%.1f%%) is quite high - consider optimization opportunities", top.Name, top.Percentage))
		} else {
			recommendations = append(recommendations, fmt.Sprintf(
				"Monitor your %s category which represents your largest expense area", top.Name))
		}
	}

	perDay := float64(transactionCount) / float64(periodDays)
	if perDay > 5 {
		recommendations = append(recommendations, "You have frequent transactions - consider consolidating purchases to better track spending")
	} else if perDay < 1 {
		recommendations = append(recommendations, "Consider tracking more detailed transactions for better financial insights")
	}

	if savingsRate > 20 {
		recommendations = append(recommendations, "With your strong savings rate, consider investing for long-term wealth building")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Continue your current financial habits and regularly review your spending patterns")
	}
	return recommendations
}

func describePatterns(topCategories []CategoryShare) string {
	if len(topCategories) < 3 {
		return "Limited spending data available. Add more transactions for detailed pattern analysis."
	}

	top3 := topCategories[:3]
	parts := make([]string, len(top3))
	for i, c := range top3 {
		parts[i] = fmt.Sprintf("%s (%.1f%%)", c.Name, c.Percentage)
	}

	patterns := fmt.Sprintf("Your spending is concentrated in %s, %s, %s. ", parts[0], parts[1], parts[2])
	if top3[0].Percentage > 50 {
		return patterns + "Consider diversifying your expenses to reduce dependency on a single category."
	}
	return patterns + "This shows a balanced approach to different expense categories."
}

func findSavings(topCategories []CategoryShare) string {
	if len(topCategories) == 0 {
		return "Track more detailed expenses to identify specific savings opportunities."
	}
	top := topCategories[0]
	if top.Percentage > 30 {
		return fmt.Sprintf("Focus on your %s expenses - even a 10%% reduction could save you $%.2f this period.",
			top.Name, top.Amount*0.1)
	}
	return "Look for subscription services or recurring expenses that you might not be using actively."
}

func suggestGoals(savingsRate float64) string {
	switch {
	case savingsRate < 10:
		return "Start with building an emergency fund covering 1 month of expenses, then gradually increase to 3-6 months."
	case savingsRate < 20:
		return "Work towards saving 20% of your income while building a solid emergency fund."
	default:
		return "Consider setting investment goals for long-term wealth building, such as retirement or major purchases."
	}
}
