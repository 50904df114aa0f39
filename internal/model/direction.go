package model

import "math"

// 八个方位对应的朝向度数（正北为 0，顺时针）。
var directionDegrees = map[string]int{
	"北":  0,
	"东北": 45,
	"东":  90,
	"东南": 135,
	"南":  180,
	"西南": 225,
	"西":  270,
	"西北": 315,
}

var directionOrder = []string{"北", "东北", "东", "东南", "南", "西南", "西", "西北"}

// DirectionDegrees 返回方位名对应的度数。
func DirectionDegrees(name string) (int, bool) {
	d, ok := directionDegrees[name]
	return d, ok
}

// DirectionName 返回度数所在的八方位扇区名，每个扇区宽 45°。
func DirectionName(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Floor((d+22.5)/45)) % 8
	return directionOrder[idx]
}
