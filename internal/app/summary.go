package app

import (
	"fmt"
	"sort"
	"strings"

	"stacker/internal/plan"
)

type StartupSummary struct {
	Env       string
	Exchanges []string
	StorePath string
	HTTPAddr  string
	Plans     []PlanSummary
}

type PlanSummary struct {
	ID         string
	Exchange   string
	Pair       string
	BaseAmount string
	Schedule   string
	Strategy   string
	Withdrawal string
	Enabled    bool
}

func newStartupSummary(env, storePath, httpAddr string, exchanges []string, plans []plan.Plan) *StartupSummary {
	s := &StartupSummary{Env: env, Exchanges: exchanges, StorePath: storePath, HTTPAddr: httpAddr}
	for _, p := range plans {
		ps := PlanSummary{
			ID:         p.ID,
			Exchange:   p.Exchange,
			Pair:       p.Pair().String(),
			BaseAmount: p.BaseAmount.StringFixed(p.Decimals()) + " " + p.Fiat,
			Strategy:   string(p.Strategy.Kind),
			Withdrawal: "off",
			Enabled:    p.Enabled,
		}
		if sched, err := p.ScheduleOf(); err == nil {
			ps.Schedule = sched.String()
		}
		if p.Withdrawal.Enabled {
			ps.Withdrawal = p.Withdrawal.Address
		}
		s.Plans = append(s.Plans, ps)
	}
	sort.Slice(s.Plans, func(i, j int) bool { return s.Plans[i].ID < s.Plans[j].ID })
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("  env:       %s\n", s.Env)
	fmt.Printf("  exchanges: %s\n", formatList(s.Exchanges))
	fmt.Printf("  store:     %s\n", s.StorePath)
	if s.HTTPAddr != "" {
		fmt.Printf("  http:      %s\n", s.HTTPAddr)
	}
	fmt.Println()

	fmt.Println("[PLANS]")
	if len(s.Plans) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range s.Plans {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("  > %s (%s, %s)\n", p.ID, p.Exchange, state)
		fmt.Printf("    pair=%s base=%s schedule=%s\n", p.Pair, p.BaseAmount, p.Schedule)
		fmt.Printf("    strategy=%s withdrawal=%s\n", p.Strategy, p.Withdrawal)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
