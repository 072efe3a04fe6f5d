package core

// DailyTotal is the summed amount of all transactions booked on one day.
type DailyTotal struct {
	Date  Date
	Cents int64
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name  string
	Cents int64
}
