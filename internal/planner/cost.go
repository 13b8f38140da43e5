package planner

import (
	"github.com/indexcards/indexnet/pkg/types"
)

// NAT Gateway hourly charge by region (as of 2024)
// Source: https://aws.amazon.com/vpc/pricing/
var natGatewayHourly = map[string]float64{
	"us-east-1":      0.045, // US East (N. Virginia)
	"us-east-2":      0.045, // US East (Ohio)
	"us-west-1":      0.048, // US West (N. California)
	"us-west-2":      0.045, // US West (Oregon)
	"eu-west-1":      0.048, // Europe (Ireland)
	"eu-west-2":      0.050, // Europe (London)
	"eu-west-3":      0.050, // Europe (Paris)
	"eu-central-1":   0.052, // Europe (Frankfurt)
	"ap-southeast-1": 0.059, // Asia Pacific (Singapore)
	"ap-southeast-2": 0.059, // Asia Pacific (Sydney)
	"ap-northeast-1": 0.062, // Asia Pacific (Tokyo)
	"default":        0.045, // Default pricing
}

// Interface endpoint hourly charge per AZ by region
var interfaceEndpointHourly = map[string]float64{
	"us-east-1":      0.010,
	"us-east-2":      0.010,
	"us-west-1":      0.011,
	"us-west-2":      0.010,
	"eu-west-1":      0.011,
	"eu-west-2":      0.011,
	"eu-west-3":      0.011,
	"eu-central-1":   0.012,
	"ap-southeast-1": 0.013,
	"ap-southeast-2": 0.013,
	"ap-northeast-1": 0.014,
	"default":        0.010,
}

// HoursPerMonth is the AWS billing convention (24 * 365 / 12).
const HoursPerMonth = 730.0

// EstimateCost returns the fixed monthly cost of the plan's hourly-billed
// resources. Gateway endpoints, security groups and subnets are free; data
// processing and log ingestion depend on traffic and are not included.
func EstimateCost(plan *types.NetworkTopologyPlan) []types.CostEstimate {
	var estimates []types.CostEstimate

	if plan.NATGatewayCount > 0 {
		rate := regionalRate(natGatewayHourly, plan.Region)
		estimates = append(estimates, types.CostEstimate{
			Component:   "NAT Gateway",
			Units:       plan.NATGatewayCount,
			HourlyRate:  rate,
			MonthlyCost: rate * float64(plan.NATGatewayCount) * HoursPerMonth,
		})
	}

	azs := len(plan.Subnets)
	for _, ep := range plan.Endpoints {
		if ep.Kind != types.EndpointInterface {
			continue
		}
		rate := regionalRate(interfaceEndpointHourly, plan.Region)
		estimates = append(estimates, types.CostEstimate{
			Component:   ep.Name,
			Units:       azs,
			HourlyRate:  rate,
			MonthlyCost: rate * float64(azs) * HoursPerMonth,
		})
	}

	return estimates
}

// TotalMonthly sums the monthly cost of estimates.
func TotalMonthly(estimates []types.CostEstimate) float64 {
	var total float64
	for _, e := range estimates {
		total += e.MonthlyCost
	}
	return total
}

func regionalRate(table map[string]float64, region string) float64 {
	if rate, ok := table[region]; ok {
		return rate
	}
	return table["default"]
}
