package main

// demoRegs is a minimal except.Regs implementation for the demo
// driver: a small register file plus the three PC registers, with no
// attached instruction memory (FaultWord always reports unavailable,
// since this driver never raises PageFault/IllegalInstr itself).
type demoRegs struct {
	r         [8]int
	pc        int
	npc       int
	ppc       int
	faultAddr int
}

func newDemoRegs() *demoRegs {
	return &demoRegs{}
}

func (d *demoRegs) Reg(i int) int     { return d.r[i] }
func (d *demoRegs) SetReg(i int, v int) { d.r[i] = v }

func (d *demoRegs) PC() int        { return d.pc }
func (d *demoRegs) SetPC(v int)    { d.pc = v }
func (d *demoRegs) NextPC() int    { return d.npc }
func (d *demoRegs) SetNextPC(v int) { d.npc = v }
func (d *demoRegs) PrevPC() int    { return d.ppc }
func (d *demoRegs) SetPrevPC(v int) { d.ppc = v }

func (d *demoRegs) FaultWord() []byte { return nil }
func (d *demoRegs) FaultAddr() int    { return d.faultAddr }
