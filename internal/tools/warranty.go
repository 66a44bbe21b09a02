package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type warrantyRecord struct {
	key      string
	plan     string
	expires  string
	coverage string
	contact  string
}

// warrantyTable is matched in order; the first key contained in the model
// name wins, so more specific keys must come before broader ones.
var warrantyTable = []warrantyRecord{
	{"thinkpad", "3-Year Lenovo Premier Support", "2026-12-31", "Parts, labor, on-site next-business-day service, accidental damage protection", "1-800-426-7378 | support.lenovo.com"},
	{"dell xps", "3-Year Dell ProSupport Plus", "2026-09-15", "Hardware repair, accidental damage, next-business-day on-site, Keep Your Hard Drive", "1-800-624-9897 | dell.com/support"},
	{"dell latitude", "3-Year Dell ProSupport", "2027-03-20", "Parts & labor, next-business-day on-site hardware support", "1-800-624-9897 | dell.com/support"},
	{"macbook", "AppleCare+ for Enterprise (3 Years)", "2026-07-01", "Hardware defects, battery service, 2 incidents of accidental damage per year", "1-800-275-2273 | apple.com/support"},
	{"hp elitebook", "3-Year HP Care Pack (Next Business Day On-Site)", "2027-01-10", "Parts, labor, on-site repair, defective media retention", "1-800-474-6836 | support.hp.com"},
	{"surface", "Microsoft Complete for Business (2 Years)", "2026-05-22", "Hardware defects, accidental damage (limited), Microsoft Store service", "1-800-642-7676 | support.microsoft.com"},
	{"zenbook", "2-Year ASUS Commercial Warranty", "2026-11-30", "Manufacturing defects, parts & labor, mail-in service", "1-888-678-3688 | asus.com/support"},
	{"ideapad", "2-Year Lenovo Standard Warranty", "2026-08-14", "Parts & labor, depot/mail-in service", "1-800-426-7378 | support.lenovo.com"},
}

func lookupWarranty(model string) (warrantyRecord, bool) {
	lower := strings.ToLower(model)
	for _, w := range warrantyTable {
		if strings.Contains(lower, w.key) {
			return w, true
		}
	}
	return warrantyRecord{}, false
}

func warrantyDescriptor(deps Dependencies) Descriptor {
	return Descriptor{
		Name: CheckWarrantyStatus,
		Description: "Check the warranty status, coverage type, and expiry date for a specific laptop model. " +
			"Use this when hardware replacement or repair authorization is being discussed.",
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"laptop_model": {Type: "string", MinLength: 1, Description: "Make and model of the device."},
			},
			Required: []string{"laptop_model"},
		},
		Handler: func(_ context.Context, args Args) (string, error) {
			model := args.String("laptop_model")
			w, ok := lookupWarranty(model)
			if !ok {
				return fmt.Sprintf("**Warranty Status: Not Found**\n\n"+
					"No warranty record found for model: **%s**\n\n"+
					"Please check the device serial number at the manufacturer's support portal "+
					"or contact the IT Asset Management team at assets@company.com.", model), nil
			}

			expiry, err := time.Parse(time.DateOnly, w.expires)
			if err != nil {
				return "", fmt.Errorf("warranty table entry %q: %w", w.key, err)
			}
			days := int(math.Floor(expiry.Sub(deps.Now()).Hours() / 24))
			status, label := "Active", fmt.Sprintf("%d days remaining", days)
			if days <= 0 {
				status, label = "Expired", fmt.Sprintf("expired %d days ago", -days)
			}

			return fmt.Sprintf("**Warranty Status for %s**\n\n"+
				"- **Status**: %s (%s)\n"+
				"- **Plan**: %s\n"+
				"- **Expiry Date**: %s\n"+
				"- **Coverage**: %s\n"+
				"- **Support Contact**: %s",
				model, status, label, w.plan, w.expires, w.coverage, w.contact), nil
		},
	}
}
