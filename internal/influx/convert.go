package influx

import (
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/mkarlsen/roomsense/internal/models"
)

// scalarFromRecord converts one single-field row. The record carries its own
// timezone offset; UnixMilli is offset-independent, so no UTC assumption is
// made.
func scalarFromRecord(rec *query.FluxRecord) (models.ScalarSample, error) {
	v, ok := rec.Value().(float64)
	if !ok {
		return models.ScalarSample{}, fmt.Errorf("%w: non-numeric _value %v", ErrMalformedRow, rec.Value())
	}
	return models.ScalarSample{
		Time:  rec.Time().UnixMilli(),
		Value: models.Round2(v),
	}, nil
}

// sampleFromRecord converts one pivoted multi-field row. Temperature and
// humidity are required; a row without them means the measurement schema no
// longer matches. CO2 is optional and absent readings convert to nil.
func sampleFromRecord(rec *query.FluxRecord) (models.Sample, error) {
	temperature, ok := fieldValue(rec, models.FieldTemperature)
	if !ok {
		return models.Sample{}, fmt.Errorf("%w: missing %s", ErrMalformedRow, models.FieldTemperature)
	}
	humidity, ok := fieldValue(rec, models.FieldHumidity)
	if !ok {
		return models.Sample{}, fmt.Errorf("%w: missing %s", ErrMalformedRow, models.FieldHumidity)
	}

	s := models.Sample{
		Time:        rec.Time().UnixMilli(),
		Temperature: models.Round2(temperature),
		Humidity:    models.Round2(humidity),
	}
	if co2, ok := fieldValue(rec, models.FieldCO2); ok {
		rounded := models.Round2(co2)
		s.CO2 = &rounded
	}
	return s, nil
}

// partialFromRecord reads whatever fields a pivoted row carries. Used by the
// latest-value path, where the per-field last() rows may land on different
// timestamps and are overlaid rather than rejected.
func partialFromRecord(rec *query.FluxRecord) (int64, map[models.Field]float64) {
	vals := make(map[models.Field]float64, 3)
	for _, f := range []models.Field{models.FieldTemperature, models.FieldHumidity, models.FieldCO2} {
		if v, ok := fieldValue(rec, f); ok {
			vals[f] = v
		}
	}
	return rec.Time().UnixMilli(), vals
}

func fieldValue(rec *query.FluxRecord, f models.Field) (float64, bool) {
	v, ok := rec.ValueByKey(string(f)).(float64)
	return v, ok
}
