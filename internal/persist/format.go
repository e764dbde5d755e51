package persist

import (
	"fmt"
	"math"
	"strconv"

	"codeberg.org/mkrell/relayctl/internal/buffer"
	"codeberg.org/mkrell/relayctl/internal/estimator"
	"codeberg.org/mkrell/relayctl/internal/run"
)

// Header is the first line of every run log.
const Header = "TestID,Level,Time_ms,I_mA,V_aux_mV,P_mW,V_bridge_mV,R_ohms"

// NA is written for any value that is non-finite or out of range.
const NA = "N/A"

// fixed renders a value with three decimals, or NA when it cannot be
// trusted in arithmetic.
func fixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}

	return strconv.FormatFloat(v, 'f', 3, 64)
}

// FormatRecord renders one persisted sample line. The resistance column
// carries NA for any invalid estimator result, so sentinel numbers never
// leak into the log.
func FormatRecord(runCtx run.Context, s buffer.Sample, est *estimator.Estimator) string {
	auxMV := est.CodeToMV(s.AuxCode)
	bridgeMV := est.CodeToMV(s.BridgeCode)
	powerMW := s.CurrentMA * auxMV / 1000.0

	res := est.FromCode(s.BridgeCode)
	rOhms := NA
	if res.Valid {
		rOhms = fixed(res.Ohms)
	}

	return fmt.Sprintf("%d,%d,%d,%s,%s,%s,%s,%s",
		runCtx.TestID,
		s.Level,
		s.Timestamp.Sub(runCtx.Started).Milliseconds(),
		fixed(s.CurrentMA),
		fixed(auxMV),
		fixed(powerMW),
		fixed(bridgeMV),
		rOhms,
	)
}
