package client

// The record types mirror the TDX v2 Air JSON field names. Every field is
// optional; a missing field decodes to its zero value or nil.

// LocalizedName is the bilingual name object TDX uses.
type LocalizedName struct {
	ZhTw string `json:"Zh_tw,omitempty"`
	En   string `json:"En,omitempty"`
}

// FlightRecord is one FIDS departure or arrival row.
type FlightRecord struct {
	FlightDate         string `json:"FlightDate,omitempty"`
	FlightNumber       string `json:"FlightNumber,omitempty"`
	AirRouteType       *int   `json:"AirRouteType,omitempty"`
	AirlineID          string `json:"AirlineID,omitempty"`
	DepartureAirportID string `json:"DepartureAirportID,omitempty"`
	ArrivalAirportID   string `json:"ArrivalAirportID,omitempty"`

	ScheduleDepartureTime  string `json:"ScheduleDepartureTime,omitempty"`
	ActualDepartureTime    string `json:"ActualDepartureTime,omitempty"`
	EstimatedDepartureTime string `json:"EstimatedDepartureTime,omitempty"`
	DepartureRemark        string `json:"DepartureRemark,omitempty"`

	ScheduleArrivalTime  string `json:"ScheduleArrivalTime,omitempty"`
	ActualArrivalTime    string `json:"ActualArrivalTime,omitempty"`
	EstimatedArrivalTime string `json:"EstimatedArrivalTime,omitempty"`
	ArrivalRemark        string `json:"ArrivalRemark,omitempty"`

	Terminal     string `json:"Terminal,omitempty"`
	Gate         string `json:"Gate,omitempty"`
	CheckCounter string `json:"CheckCounter,omitempty"`
	BaggageClaim string `json:"BaggageClaim,omitempty"`
	IsCargo      *bool  `json:"IsCargo,omitempty"`
	UpdateTime   string `json:"UpdateTime,omitempty"`
}

// MetarRecord is one METAR observation for an airport.
type MetarRecord struct {
	AirportID          string   `json:"AirportID,omitempty"`
	StationID          string   `json:"StationID,omitempty"`
	MetarText          string   `json:"MetarText,omitempty"`
	ObservationTime    string   `json:"ObservationTime,omitempty"`
	Temperature        *float64 `json:"Temperature,omitempty"`
	DewPoint           *float64 `json:"DewPoint,omitempty"`
	WindDirection      *float64 `json:"WindDirection,omitempty"`
	WindSpeed          *float64 `json:"WindSpeed,omitempty"`
	Visibility         string   `json:"Visibility,omitempty"`
	Altimeter          *float64 `json:"Altimeter,omitempty"`
	WeatherDescription string   `json:"WeatherDescription,omitempty"`
	UpdateTime         string   `json:"UpdateTime,omitempty"`
}

// ScheduleRecord is one regular-schedule row.
type ScheduleRecord struct {
	AirlineID          string      `json:"AirlineID,omitempty"`
	FlightNumber       string      `json:"FlightNumber,omitempty"`
	ScheduleStartDate  string      `json:"ScheduleStartDate,omitempty"`
	ScheduleEndDate    string      `json:"ScheduleEndDate,omitempty"`
	DepartureAirportID string      `json:"DepartureAirportID,omitempty"`
	DepartureTime      string      `json:"DepartureTime,omitempty"`
	ArrivalAirportID   string      `json:"ArrivalAirportID,omitempty"`
	ArrivalTime        string      `json:"ArrivalTime,omitempty"`
	Monday             *bool       `json:"Monday,omitempty"`
	Tuesday            *bool       `json:"Tuesday,omitempty"`
	Wednesday          *bool       `json:"Wednesday,omitempty"`
	Thursday           *bool       `json:"Thursday,omitempty"`
	Friday             *bool       `json:"Friday,omitempty"`
	Saturday           *bool       `json:"Saturday,omitempty"`
	Sunday             *bool       `json:"Sunday,omitempty"`
	CodeShare          []CodeShare `json:"CodeShare,omitempty"`
	UpdateTime         string      `json:"UpdateTime,omitempty"`
}

// CodeShare is a marketing carrier attached to a scheduled flight.
type CodeShare struct {
	AirlineID    string `json:"AirlineID,omitempty"`
	FlightNumber string `json:"FlightNumber,omitempty"`
}

// AirlineRecord is one airline master-data row.
type AirlineRecord struct {
	AirlineID          string         `json:"AirlineID,omitempty"`
	AirlineName        *LocalizedName `json:"AirlineName,omitempty"`
	AirlineNameAlias   string         `json:"AirlineNameAlias,omitempty"`
	AirlineIATA        string         `json:"AirlineIATA,omitempty"`
	AirlineICAO        string         `json:"AirlineICAO,omitempty"`
	AirlineNationality string         `json:"AirlineNationality,omitempty"`
	AirlineURL         string         `json:"AirlineUrl,omitempty"`
	AirlinePhone       string         `json:"AirlinePhone,omitempty"`
	UpdateTime         string         `json:"UpdateTime,omitempty"`
}
