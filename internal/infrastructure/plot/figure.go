// Package plot builds plotly-compatible 3D figures from a filtered
// timetable: time of day on x, corridor distance on y, one z-plane per rake
// link or service.
package plot

// Trace is a plotly scatter3d trace.
type Trace struct {
	Type       string    `json:"type"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	Z          []float64 `json:"z"`
	Mode       string    `json:"mode"`
	Line       *Style    `json:"line,omitempty"`
	Marker     *Style    `json:"marker,omitempty"`
	HoverText  []string  `json:"hovertext,omitempty"`
	HoverInfo  string    `json:"hoverinfo,omitempty"`
	Name       string    `json:"name"`
	Opacity    float64   `json:"opacity,omitempty"`
	ShowLegend *bool     `json:"showlegend,omitempty"`
	Visible    bool      `json:"visible"`
}

// Style styles a trace's line or markers.
type Style struct {
	Color string  `json:"color,omitempty"`
	Size  float64 `json:"size,omitempty"`
	Width float64 `json:"width,omitempty"`
}

// Axis is one scene axis.
type Axis struct {
	ShowGrid   bool      `json:"showgrid"`
	ShowSpikes bool      `json:"showspikes"`
	Title      string    `json:"title"`
	Range      []float64 `json:"range,omitempty"`
	TickVals   []float64 `json:"tickvals,omitempty"`
	TickText   []string  `json:"ticktext,omitempty"`
	AutoRange  *bool     `json:"autorange,omitempty"`
}

// Vector is a 3D point for camera placement.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Projection selects how the scene camera maps 3D points to the screen.
// Plotly expects a nested object, not a bare string.
type Projection struct {
	Type string `json:"type"`
}

// Camera positions the scene viewpoint.
type Camera struct {
	Eye        Vector     `json:"eye"`
	Up         Vector     `json:"up"`
	Center     Vector     `json:"center"`
	Projection Projection `json:"projection"`
}

// Scene is the 3D plot area.
type Scene struct {
	XAxis       Axis   `json:"xaxis"`
	YAxis       Axis   `json:"yaxis"`
	ZAxis       Axis   `json:"zaxis"`
	Camera      Camera `json:"camera"`
	AspectMode  string `json:"aspectmode"`
	AspectRatio Vector `json:"aspectratio"`
}

// Font styles figure text.
type Font struct {
	Size  int    `json:"size"`
	Color string `json:"color"`
}

// Margin is the figure margin in pixels.
type Margin struct {
	T int `json:"t"`
	L int `json:"l"`
	B int `json:"b"`
	R int `json:"r"`
}

// Annotation is a text box anchored to the figure.
type Annotation struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	XRef        string  `json:"xref"`
	YRef        string  `json:"yref"`
	ShowArrow   bool    `json:"showarrow"`
	Align       string  `json:"align"`
	BgColor     string  `json:"bgcolor"`
	BorderColor string  `json:"bordercolor"`
	BorderWidth int     `json:"borderwidth"`
	BorderPad   int     `json:"borderpad"`
	Font        Font    `json:"font"`
	Text        string  `json:"text"`
}

// Layout is the figure layout.
type Layout struct {
	Font        Font         `json:"font"`
	Scene       Scene        `json:"scene"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Margin      Margin       `json:"margin"`
	AutoSize    bool         `json:"autosize"`
	Annotations []Annotation `json:"annotations"`
}

// Figure is a complete plotly figure, serializable straight into
// Plotly.newPlot.
type Figure struct {
	Data   []*Trace `json:"data"`
	Layout Layout   `json:"layout"`
}
