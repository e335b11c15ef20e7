package constants

import "strings"

// Field is a catalog identifier as it appears on an inspection report page.
type Field string

const (
	ShipNo                  Field = "ShipNo."
	KindOfMaterial          Field = "Kind of Material"
	Place                   Field = "Place"
	InspectionDate          Field = "Inspection Date"
	InspectionTime          Field = "Inspection Time"
	Weather                 Field = "Weather"
	DryBulbTemp             Field = "Dry bulb Temp"
	WetBulbTemp             Field = "Wet bulb Temp"
	RelativeHumidity        Field = "Relative Humidity"
	DewPoint                Field = "Dew Point"
	SurfaceTemp             Field = "Surface Temp"
	Judgement               Field = "Judgement"
	SurfaceCleanliness      Field = "Surface Cleanliness"
	SurfaceProfile          Field = "Surface Profile"
	WaterSolubleSalt        Field = "Water Soluble Salt"
	Dust                    Field = "Dust"
	OilGrease               Field = "Oil / Grease"
	ContaminationOfAbrasive Field = "contamination of abrasive"
	Manufacturer            Field = "Manufacturer"
	ProductName             Field = "Product name"
	IDNumber                Field = "ID number"
	BatchNoBase             Field = "Batch No Base"
	BatchNoHard             Field = "Batch No Hard"
	Lower                   Field = "Lower"
	Upper                   Field = "Upper"
	MeasuredDFT             Field = "Measured D.F.T"
	Curing                  Field = "Curing"
)

// Weather is exported as two columns.
const (
	Weather1 = "Weather_1"
	Weather2 = "Weather_2"
)

// allFields is in catalog order; earlier entries win when a line matches several.
var allFields = []Field{
	ShipNo,
	KindOfMaterial,
	Place,
	InspectionDate,
	InspectionTime,
	Weather,
	DryBulbTemp,
	WetBulbTemp,
	RelativeHumidity,
	DewPoint,
	SurfaceTemp,
	Judgement,
	SurfaceCleanliness,
	SurfaceProfile,
	WaterSolubleSalt,
	Dust,
	OilGrease,
	ContaminationOfAbrasive,
	Manufacturer,
	ProductName,
	IDNumber,
	BatchNoBase,
	BatchNoHard,
	Lower,
	Upper,
	MeasuredDFT,
	Curing,
}

// numericFields keep only the signed decimal token of their value.
var numericFields = map[Field]struct{}{
	DryBulbTemp:      {},
	WetBulbTemp:      {},
	RelativeHumidity: {},
	DewPoint:         {},
	SurfaceTemp:      {},
	WaterSolubleSalt: {},
	Lower:            {},
	Upper:            {},
	MeasuredDFT:      {},
}

// AllFields returns a copy of the identifiers in catalog order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

func IsNumeric(f Field) bool {
	_, ok := numericFields[f]
	return ok
}

// Canonicalize resolves a label to its catalog identifier, exact match first,
// then case-insensitive.
func Canonicalize(input string) (Field, bool) {
	label := strings.TrimSpace(input)
	if label == "" {
		return "", false
	}
	for _, f := range allFields {
		if label == string(f) {
			return f, true
		}
	}
	lower := strings.ToLower(label)
	for _, f := range allFields {
		if lower == strings.ToLower(string(f)) {
			return f, true
		}
	}
	return "", false
}
