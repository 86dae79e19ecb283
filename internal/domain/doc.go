// Package domain models hydrological and meteorological time series and the
// water level forecasts derived from them.
//
// # Data Sources
//
// Water levels come from the PEGELONLINE REST API (v2) operated by the German
// Federal Waterways and Shipping Administration. Gauges are identified by a
// UUID. Readings are integers in centimetres relative to the gauge datum and
// timestamps carry an explicit UTC offset, e.g. "2024-05-01T12:00:00+02:00".
// Besides measurements the API publishes a WV time series that mixes
// hydrological service forecasts ("forecast") and estimates ("estimate").
//
// Precipitation comes from the DWD (Deutscher Wetterdienst) open data server:
//
//   - 10-minute "now" observations: a ZIP archive holding one ';'-delimited
//     Latin-1 text file with columns STATIONS_ID, MESS_DATUM (yyyymmddHHMM, UTC),
//     QN, RWS_DAU_10, RWS_10 (mm), RWS_IND_10 and a trailing "eor" marker.
//     -999 is the missing-value sentinel.
//   - MOSMIX-L point forecasts: a KMZ archive (ZIP with one KML document).
//     dwd:IssueTime, dwd:ForecastTimeSteps and per-element dwd:Forecast blocks
//     whose dwd:value holds whitespace separated numbers; "-" means missing.
//     RR1c is the hourly precipitation total in kg/m² (= mm).
//
// # Identifiers
//
// Canonical entity IDs are lower-case PEGELONLINE UUIDs, "dwd:" followed by the
// five digit DWD station ID ("dwd:00433") and "mosmix:" followed by the MOSMIX
// station name ("mosmix:10513").
//
// # Quality
//
// Every record carries a quality tag: measured, forecast, interpolated or
// missing. Missing records never reach a [TimeSeries]; a gap in a series is the
// absence of a timestamp, not a zero value.
//
// # Persistence Schema
//
// Series and forecasts are persisted as [Point] values: measurement name, an
// entity tag, a quality tag, a timestamp and float fields. [ForecastPoints] and
// [ForecastFromPoints] convert a [ForecastResult] to and from that schema
// without loss.
package domain
