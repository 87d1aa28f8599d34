package users

import (
	"context"

	"github.com/R3E-Network/action_layer/internal/app/domain/user"
	"github.com/R3E-Network/action_layer/pkg/action"
	"github.com/R3E-Network/action_layer/pkg/result"
)

// Report summarises the user base.
type Report struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	Latest   []user.Profile `json:"latest"`
}

// reportLatest is how many recent sign-ups a report lists.
const reportLatest = 5

// ReportUsers counts users by status. It is run by the scheduler.
type ReportUsers struct {
	Base
}

func (a *ReportUsers) Name() string { return "users.report" }

func (a *ReportUsers) Handle(ctx context.Context, _ action.Caller, _ struct{}) (result.Result, error) {
	var (
		report Report
		err    error
	)
	if report.Total, err = a.users.Count(ctx, nil); err != nil {
		return result.Result{}, err
	}
	if report.Active, err = a.users.Count(ctx, statusFilter(user.StatusActive)); err != nil {
		return result.Result{}, err
	}
	if report.Inactive, err = a.users.Count(ctx, statusFilter(user.StatusInactive)); err != nil {
		return result.Result{}, err
	}

	latest, err := a.users.Latest(ctx, reportLatest)
	if err != nil {
		return result.Result{}, err
	}
	report.Latest = make([]user.Profile, 0, len(latest))
	for _, u := range latest {
		report.Latest = append(report.Latest, u.Public())
	}
	return result.Success(report, result.WithMessage("User report generated")), nil
}

func statusFilter(status user.Status) map[string][]string {
	return map[string][]string{"status": {string(status)}}
}
