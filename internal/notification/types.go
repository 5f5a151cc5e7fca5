package notification

import "fmt"

// TypeCode identifies what kind of notification is being sent. The set is
// closed; codes travel over the wire by name.
type TypeCode string

const (
	TypeLocationBased         TypeCode = "LOCATION_BASED"
	TypeExpiryDate            TypeCode = "EXPIRY_DATE"
	TypeReceiveGifticon       TypeCode = "RECEIVE_GIFTICON"
	TypeUsageComplete         TypeCode = "USAGE_COMPLETE"
	TypeShareBoxGifticon      TypeCode = "SHAREBOX_GIFTICON"
	TypeShareBoxUsageComplete TypeCode = "SHAREBOX_USAGE_COMPLETE"
	TypeShareBoxMemberJoin    TypeCode = "SHAREBOX_MEMBER_JOIN"
	TypeShareBoxDeleted       TypeCode = "SHAREBOX_DELETED"
)

// displayNames are used as push titles.
var displayNames = map[TypeCode]string{
	TypeLocationBased:         "Nearby store alert",
	TypeExpiryDate:            "Expiry date reminder",
	TypeReceiveGifticon:       "Gifticon give-away",
	TypeUsageComplete:         "Usage confirmation",
	TypeShareBoxGifticon:      "Share box gifticon added",
	TypeShareBoxUsageComplete: "Share box gifticon used",
	TypeShareBoxMemberJoin:    "Share box member joined",
	TypeShareBoxDeleted:       "Share box deleted",
}

func (c TypeCode) DisplayName() string {
	return displayNames[c]
}

func (c TypeCode) Valid() bool {
	_, ok := displayNames[c]
	return ok
}

// ExpirationCycle is the lead time, in days, before a gifticon's expiry date
// at which the owner wants to be warned.
type ExpirationCycle int

const (
	CycleOneDay     ExpirationCycle = 1
	CycleTwoDays    ExpirationCycle = 2
	CycleThreeDays  ExpirationCycle = 3
	CycleOneWeek    ExpirationCycle = 7
	CycleOneMonth   ExpirationCycle = 30
	CycleTwoMonths  ExpirationCycle = 60
	CycleThreeMonth ExpirationCycle = 90
)

// ExpirationCycles is the closed set of configurable cycles, ascending.
var ExpirationCycles = []ExpirationCycle{
	CycleOneDay, CycleTwoDays, CycleThreeDays,
	CycleOneWeek, CycleOneMonth, CycleTwoMonths, CycleThreeMonth,
}

func (c ExpirationCycle) Days() int {
	return int(c)
}

func (c ExpirationCycle) Valid() bool {
	for _, v := range ExpirationCycles {
		if c == v {
			return true
		}
	}
	return false
}

func ParseExpirationCycle(days int) (ExpirationCycle, error) {
	c := ExpirationCycle(days)
	if !c.Valid() {
		return 0, fmt.Errorf("invalid expiration cycle: %d days", days)
	}
	return c, nil
}
