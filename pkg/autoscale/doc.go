/*
Package autoscale grows and shrinks pool capacity from live
utilization.

	            utilization = in_use / max_size
	  1.0 ┤
	      │   ████ sustained above high ──► Resize(+step)
	 high ┤┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄
	      │        normal band: no action
	  low ┤┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄
	      │   ░░░░ sustained below low  ──► Resize(-step) + EvictIdle
	  0.0 ┤

Decisions need the utilization to stay past a watermark for the whole
configured window; a single tick across the line does nothing, which
keeps transient spikes from oscillating the pool. Shrinking removes
idle instances only and both directions clamp to the policy's
absolute min and max.
*/
package autoscale
