package tensor

import (
	"runtime"
)

const (
	defaultTileM = 32
	defaultTileN = 32
	defaultTileK = 16

	// Products smaller than this many multiply-adds run on the calling
	// goroutine.
	gemmParallelThreshold = 1 << 16
)

// selectGemmTiles widens the K tile for deeper products.
func selectGemmTiles(k int) (int, int, int) {
	tk := defaultTileK
	switch {
	case k >= 192:
		tk = 32
	case k >= 96:
		tk = 24
	}
	return defaultTileM, defaultTileN, tk
}

type gemmTask struct {
	C, A, B     *Mat
	alpha, beta float32
	rs, re      int
	tm, tn, tk  int
	done        chan struct{}
}

type gemmPool struct {
	size      int
	tasks     chan gemmTask
	doneSlots chan chan struct{}
}

func newGemmPool() *gemmPool {
	size := max(runtime.GOMAXPROCS(0), 1)
	p := &gemmPool{
		size:      size,
		tasks:     make(chan gemmTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	for range size {
		p.doneSlots <- make(chan struct{}, size)
	}
	for range size {
		go func() {
			for task := range p.tasks {
				gemmRangeRows(task.C, task.A, task.B, task.alpha, task.beta, task.rs, task.re, task.tm, task.tn, task.tk)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

var gemmWorkPool = newGemmPool()

// GemmPar computes C = alpha*A*B + beta*C with a blocked algorithm, splitting
// the output rows across up to workers goroutines. workers <= 0 means
// GOMAXPROCS. Each output row is produced by one worker in a fixed order, so
// the result does not depend on the worker count.
func GemmPar(C, A, B *Mat, alpha, beta float32, workers int) {
	if A.C != B.R || C.R != A.R || C.C != B.C {
		panic("gemm: dimension mismatch")
	}
	if C.R == 0 || C.C == 0 {
		return
	}

	tm, tn, tk := selectGemmTiles(A.C)

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, C.R, gemmWorkPool.size)
	if workers <= 1 {
		gemmRangeRows(C, A, B, alpha, beta, 0, C.R, tm, tn, tk)
		return
	}

	chunk := (C.R + workers - 1) / workers

	done := <-gemmWorkPool.doneSlots
	sent := 0
	for rs := 0; rs < C.R; rs += chunk {
		gemmWorkPool.tasks <- gemmTask{
			C:     C,
			A:     A,
			B:     B,
			alpha: alpha,
			beta:  beta,
			rs:    rs,
			re:    min(rs+chunk, C.R),
			tm:    tm,
			tn:    tn,
			tk:    tk,
			done:  done,
		}
		sent++
	}
	for range sent {
		<-done
	}
	gemmWorkPool.doneSlots <- done
}

// gemmRangeRows performs a blocked GEMM on a contiguous range of rows of C.
func gemmRangeRows(C, A, B *Mat, alpha, beta float32, rs, re int, tm, tn, tk int) {
	cStride := C.Stride
	n := C.C
	switch beta {
	case 0:
		for i := rs; i < re; i++ {
			base := i * cStride
			clear(C.Data[base : base+n])
		}
	case 1:
	default:
		for i := rs; i < re; i++ {
			row := C.Data[i*cStride : i*cStride+n]
			for j := range row {
				row[j] *= beta
			}
		}
	}

	k := A.C
	for i0 := rs; i0 < re; i0 += tm {
		iMax := min(i0+tm, re)
		for k0 := 0; k0 < k; k0 += tk {
			kMax := min(k0+tk, k)
			for j0 := 0; j0 < n; j0 += tn {
				jMax := min(j0+tn, n)
				blockUpdate(C.Data, A.Data, B.Data, cStride, A.Stride, B.Stride, alpha, i0, iMax, j0, jMax, k0, kMax)
			}
		}
	}
}

func blockUpdate(cData, aData, bData []float32, cStride, aStride, bStride int, alpha float32, i0, iMax, j0, jMax, k0, kMax int) {
	width := jMax - j0
	for i := i0; i < iMax; i++ {
		aRow := aData[i*aStride:]
		cOff := i*cStride + j0
		cRow := cData[cOff : cOff+width]

		for kk := k0; kk < kMax; kk++ {
			aik := aRow[kk] * alpha
			if aik == 0 {
				continue
			}
			bOff := kk*bStride + j0
			bRow := bData[bOff : bOff+width]

			j := 0
			for ; j+7 < width; j += 8 {
				cRow[j+0] += aik * bRow[j+0]
				cRow[j+1] += aik * bRow[j+1]
				cRow[j+2] += aik * bRow[j+2]
				cRow[j+3] += aik * bRow[j+3]
				cRow[j+4] += aik * bRow[j+4]
				cRow[j+5] += aik * bRow[j+5]
				cRow[j+6] += aik * bRow[j+6]
				cRow[j+7] += aik * bRow[j+7]
			}
			for ; j < width; j++ {
				cRow[j] += aik * bRow[j]
			}
		}
	}
}
